package main

import (
	"testing"

	"github.com/odyssey-erp/depot/internal/app"
	_ "github.com/odyssey-erp/depot/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled")
	}
	main()
}
