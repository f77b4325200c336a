// Package execfind locates the solver executable from the installation
// variables the vendor installer exports, such as ANSYS241_DIR.
package execfind

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/femloop/internal/config"
)

var dirVar = regexp.MustCompile(`(?i)^ANSYS([0-9]+)_DIR$`)

// Installation is one solver install advertised by the environment.
type Installation struct {
	Version    int
	Dir        string
	Executable string
}

// Discover returns the installations named in environ, newest first. Entries
// with an empty directory are ignored.
func Discover(environ []string, goos string) []Installation {
	var found []Installation
	for _, kv := range environ {
		name, dir, ok := strings.Cut(kv, "=")
		if !ok || dir == "" {
			continue
		}
		m := dirVar.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, Installation{
			Version:    version,
			Dir:        dir,
			Executable: ExecutablePath(dir, version, goos),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Version > found[j].Version
	})
	return found
}

// ExecutablePath builds the solver binary's path inside an installation.
func ExecutablePath(dir string, version int, goos string) string {
	if goos == "windows" {
		return filepath.Join(dir, "bin", "winx64", fmt.Sprintf("ANSYS%d.exe", version))
	}
	return filepath.Join(dir, "bin", fmt.Sprintf("ansys%d", version))
}

// Find returns the executable of the newest installation that exists on
// disk. It fails with a ConfigurationError when none does.
func Find(environ []string) (string, error) {
	return find(environ, runtime.GOOS)
}

func find(environ []string, goos string) (string, error) {
	installs := Discover(environ, goos)
	if len(installs) == 0 {
		return "", config.Errorf("executable", "no ANSYS<version>_DIR variable is set")
	}
	for _, in := range installs {
		info, err := os.Stat(in.Executable)
		if err == nil && !info.IsDir() {
			return in.Executable, nil
		}
	}
	return "", config.Errorf("executable", "no solver executable found, newest candidate was %s", installs[0].Executable)
}
