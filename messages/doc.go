// Package messages maps accountflow errors to English text for display.
//
// Kinds carry no text of their own; presentation layers that need a
// different language supply their own catalogue keyed the same way.
package messages
