// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts the time source so token lifetimes are deterministic under
// test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Test use only.
type FixedClock time.Time

// Now returns the fixed instant.
func (f FixedClock) Now() time.Time {
	return time.Time(f)
}

// IDGenerator mints unique identifiers for jti claims and PAR request URIs.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
