package cabbage

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
)

// Haikus are the project's haikus. Each entry is one haiku of three lines.
var Haikus = [10][3]string{
	{
		"Cabbage speaks in shards",
		"Keys refract in veiled silence",
		"Reflected values",
	},
	{
		"Across distant glass",
		"The echoes of gets and puts",
		"Drift through wire and fog",
	},
	{
		"A shimmer of keys",
		"Projected from some dark place",
		"Returns not their source",
	},
	{
		"Under leafy lens",
		"Cabbage splits the call in twain",
		"One here, one beyond",
	},
	{
		"Put it through the pane",
		"It lands in unseen gardens",
		"Read back through the mist",
	},
	{
		"Time is not so fixed",
		"Mirrored states in transit shift",
		"The value was... this?",
	},
	{
		"Behind glassy veil",
		"A cabbage curls around truth",
		"Decoding the void",
	},
	{
		"Call and it may hear",
		"Though the mirror gives no sign",
		"It stores what it wills",
	},
	{
		"The proxy stands still",
		"Yet ripples distort the depth",
		"One key, many truths",
	},
	{
		"Cabbage knows your keys",
		"But never shows its own face",
		"Just reflections, stored",
	},
}

// PrintHaiku writes a random project haiku to w, or all of them (one per
// line, colon-separated) when all is true.
func PrintHaiku(w io.Writer, all bool) error {
	if all {
		for _, h := range Haikus {
			if _, err := fmt.Fprintln(w, strings.Join(h[:], " : ")); err != nil {
				return err
			}
		}
		return nil
	}

	h := Haikus[rand.Intn(len(Haikus))]
	_, err := fmt.Fprintln(w, strings.Join(h[:], "\n"))
	return err
}
