package route

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// browserCommand picks the opener for the current platform. BROWSER wins
// when set.
func browserCommand(target string) *exec.Cmd {
	if b := os.Getenv("BROWSER"); b != "" {
		return exec.Command(b, target)
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return exec.Command("xdg-open", target)
	}
}

// BrowserFallback returns a dispatcher that performs a full navigation by
// opening base+path in the system browser.
func BrowserFallback(base string) func(path string) error {
	base = strings.TrimRight(base, "/")
	return func(path string) error {
		if base == "" {
			return fmt.Errorf("no base URL for full navigation to %s", path)
		}
		cmd := browserCommand(base + path)
		// The opener may outlive us; don't wait on it.
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("open browser: %w", err)
		}
		go cmd.Wait()
		return nil
	}
}
