// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gauge draws a one line bar gauge on a terminal using ANSI 256
// color codes. It is meant for bench use, to watch a reading move without a
// scope or a master attached to the bus.
package gauge

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for the gauge.
type Opts struct {
	// Width is the number of cells of the bar. Default is 40.
	Width int
	// Fill and Empty are the colors of the filled and the empty part.
	Fill  color.NRGBA
	Empty color.NRGBA
	// Palette defaults to ansi256.Default.
	Palette *ansi256.Palette
}

// DefaultOpts holds the default options.
var DefaultOpts = Opts{
	Width: 40,
	Fill:  color.NRGBA{R: 0x20, G: 0xc0, B: 0x40, A: 255},
	Empty: color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 255},
}

// Dev is a bar gauge written to a terminal. It also implements
// display.Drawer so any 1 pixel high image can be shown on it.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette
	opts    Opts

	pixels []byte
	label  string
	buf    bytes.Buffer
}

// New returns a gauge on stdout. The Opts can be nil.
func New(opts *Opts) *Dev {
	return NewWriter(colorable.NewColorableStdout(), opts)
}

// NewWriter returns a gauge writing to w.
func NewWriter(w io.Writer, opts *Opts) *Dev {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Width <= 0 {
		o.Width = DefaultOpts.Width
	}
	p := o.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Dev{
		w:       w,
		palette: *p,
		opts:    o,
		pixels:  make([]byte, 3*o.Width),
	}
}

// Render draws the bar filled to fraction, clamped to 0..1, followed by
// label.
func (d *Dev) Render(fraction float64, label string) error {
	filled := d.Filled(fraction)
	for i := 0; i < d.opts.Width; i++ {
		c := d.opts.Empty
		if i < filled {
			c = d.opts.Fill
		}
		d.pixels[3*i] = c.R
		d.pixels[3*i+1] = c.G
		d.pixels[3*i+2] = c.B
	}
	d.label = label
	_, err := d.refresh()
	return err
}

// Filled returns the number of cells a fraction lights up.
func (d *Dev) Filled(fraction float64) int {
	if math.IsNaN(fraction) || fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return d.opts.Width
	}
	return int(math.Round(fraction * float64(d.opts.Width)))
}

func (d *Dev) String() string {
	return "gauge"
}

// Halt implements conn.Resource. It resets the colors and ends the line.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// Write accepts a stream of raw RGB pixels and writes it to the console.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels)%3 != 0 {
		return 0, errors.New("gauge: invalid RGB stream length")
	}
	copy(d.pixels, pixels)
	return d.refresh()
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rectangle{Max: image.Point{X: d.opts.Width, Y: 1}}
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	srcR := src.Bounds()
	srcR.Min = srcR.Min.Add(sp)
	if dX := r.Dx(); dX < srcR.Dx() {
		srcR.Max.X = srcR.Min.X + dX
	}
	deltaX3 := 3 * (r.Min.X - srcR.Min.X)
	for sX := srcR.Min.X; sX < srcR.Max.X; sX++ {
		r16, g16, b16, _ := src.At(sX, srcR.Min.Y).RGBA()
		dX3 := 3*sX + deltaX3
		d.pixels[dX3] = byte(r16 >> 8)
		d.pixels[dX3+1] = byte(g16 >> 8)
		d.pixels[dX3+2] = byte(b16 >> 8)
	}
	_, err := d.refresh()
	return err
}

// refresh rewrites the current line in place.
func (d *Dev) refresh() (int, error) {
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for i := 0; i < len(d.pixels)/3; i++ {
		c := color.NRGBA{d.pixels[3*i], d.pixels[3*i+1], d.pixels[3*i+2], 255}
		_, _ = io.WriteString(&d.buf, d.palette.Block(c))
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, _ = d.buf.WriteString(d.label)
	_, _ = d.buf.WriteString("\033[K")
	_, err := d.buf.WriteTo(d.w)
	return len(d.pixels), err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
