package ui

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Styles are package globals; rendering before InitTheme would use zero
	// colors.
	InitTheme(ThemeDark, "green", "yellow")
	os.Exit(m.Run())
}
