/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package events

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// Writer serializes Events as newline-delimited JSON onto an io.Writer
// (stdout in production). One object per line, flushed immediately so
// that a slow reader on the other end of a pipe never sees a partial
// line.
type Writer struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{bw: bw, enc: json.NewEncoder(bw)}
}

// Write encodes e as one JSON line and flushes it.
func (w *Writer) Write(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(e); err != nil {
		return err
	}
	return w.bw.Flush()
}

// Pump reads from ch until it is closed, writing each event in turn.
// Intended to be run in its own goroutine against a Bus subscription.
func (w *Writer) Pump(ch <-chan Event) {
	for e := range ch {
		w.Write(e)
	}
}
