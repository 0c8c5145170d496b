// Package snkv
// BSD 3-Clause License
//
// Copyright (c) 2024, Alex Gaetano Padula
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
//  1. Redistributions of source code must retain the above copyright notice, this
//     list of conditions and the following disclaimer.
//
//  2. Redistributions in binary form must reproduce the above copyright notice,
//     this list of conditions and the following disclaimer in the documentation
//     and/or other materials provided with the distribution.
//
//  3. Neither the name of the copyright holder nor the names of its
//     contributors may be used to endorse or promote products derived from
//     this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
package snkv

import "errors"

// Sentinel errors matching the fixed taxonomy. The human string on a
// wrapped Error is a best-effort diagnostic, not part of the contract;
// callers should compare with errors.Is.
var (
	ErrNotFound  = errors.New("snkv: not found")
	ErrBusy      = errors.New("snkv: busy")
	ErrReadOnly  = errors.New("snkv: read only")
	ErrCorrupt   = errors.New("snkv: corrupt")
	ErrNoMem     = errors.New("snkv: out of memory")
	ErrClosing   = errors.New("snkv: store is closing")
	ErrFull      = errors.New("snkv: metadata collision chain exhausted")
	ErrGeneric   = errors.New("snkv: error")
)

// NoTTL is the sentinel remaining-ms value for a key that has no TTL.
const NoTTL = -1

// opErr wraps ErrGeneric (or another sentinel) with a descriptive message,
// the way k4.go favors fmt.Errorf for business-rule violations.
type opErr struct {
	kind error
	msg  string
}

func (e *opErr) Error() string { return e.msg }
func (e *opErr) Unwrap() error { return e.kind }

func newErr(kind error, msg string) error {
	return &opErr{kind: kind, msg: msg}
}
