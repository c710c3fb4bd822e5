// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package indexstore

import (
	"context"
	"time"

	"github.com/fau-hpc/bgvtrace/pkg/log"
)

type queryTimeKey struct{}

// hooks satisfies sqlhooks.Hooks, logging every query issued against the
// index store's database connection.
type hooks struct{}

func (hooks) Before(ctx context.Context, query string, args ...any) (context.Context, error) {
	log.Debugf("indexstore: query %s %q", query, args)
	return context.WithValue(ctx, queryTimeKey{}, time.Now()), nil
}

func (hooks) After(ctx context.Context, query string, args ...any) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimeKey{}).(time.Time); ok {
		log.Debugf("indexstore: took %s", time.Since(begin))
	}
	return ctx, nil
}
