// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutAddressReturnsNoop(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, Noop, p)

	// Noop must tolerate every call without panicking.
	p.GraphMaterialized(42, "Foo")
	p.GraphDuplicate(42, "Foo")
	p.Close()
}

func TestNewWithUnreachableAddressFails(t *testing.T) {
	_, err := New(Config{Address: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}
