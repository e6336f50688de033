// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gauge

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/maruel/ansi256"
)

func TestFilled(t *testing.T) {
	d := NewWriter(&bytes.Buffer{}, &Opts{Width: 10})
	var tests = []struct {
		f    float64
		want int
	}{
		{-1, 0},
		{math.NaN(), 0},
		{0, 0},
		{0.04, 0},
		{0.05, 1},
		{0.5, 5},
		{1, 10},
		{3, 10},
	}
	for _, test := range tests {
		if got := d.Filled(test.f); got != test.want {
			t.Errorf("Filled(%g)=%d expected %d", test.f, got, test.want)
		}
	}
}

func TestRender(t *testing.T) {
	buf := &bytes.Buffer{}
	d := NewWriter(buf, nil)
	if d.Bounds().Dx() != DefaultOpts.Width {
		t.Fatalf("unexpected bounds %v", d.Bounds())
	}
	fill := ansi256.Default.Block(DefaultOpts.Fill)
	empty := ansi256.Default.Block(DefaultOpts.Empty)

	if err := d.Render(1, "1013.25 mbar"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\r\033[0m") || !strings.Contains(out, "1013.25 mbar") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, fill) || strings.Contains(out, empty) {
		t.Errorf("full gauge %q", out)
	}

	buf.Reset()
	if err := d.Render(0, ""); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	if strings.Contains(out, fill) || !strings.Contains(out, empty) {
		t.Errorf("empty gauge %q", out)
	}

	buf.Reset()
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\033[0m\n" {
		t.Errorf("Halt wrote %q", buf.String())
	}
}

func TestWriteDraw(t *testing.T) {
	buf := &bytes.Buffer{}
	d := NewWriter(buf, &Opts{Width: 2})
	if _, err := d.Write([]byte{1, 2}); err == nil {
		t.Error("expected error for a partial pixel")
	}
	if n, err := d.Write([]byte{255, 0, 0, 0, 0, 255}); err != nil || n != 6 {
		t.Fatalf("Write()=%d, %v", n, err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{0, 255, 0, 255})
	buf.Reset()
	if err := d.Draw(d.Bounds(), img, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), ansi256.Default.Block(color.NRGBA{0, 255, 0, 255})) {
		t.Errorf("drawn pixel missing from %q", buf.String())
	}
	if d.ColorModel() != color.NRGBAModel || d.String() != "gauge" {
		t.Error("unexpected drawer properties")
	}
}
