// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package s3content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRangeHeaderIsInclusiveOnBothEnds guards the one piece of this
// package's logic that doesn't require a live S3 endpoint: everything
// else needs network access and is left to integration testing.
func TestRangeHeaderIsInclusiveOnBothEnds(t *testing.T) {
	assert.Equal(t, "bytes=0-9", rangeHeader(0, 10))
	assert.Equal(t, "bytes=100-199", rangeHeader(100, 200))
}
