package detection

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Detection is a single model output for one frame
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	Box        image.Rectangle
}

// Label returns the "name NN%" caption drawn next to the box
func (d Detection) Label() string {
	return fmt.Sprintf("%s %.0f%%", d.ClassName, d.Confidence*100)
}

// Registry maps class ids to names. It is filled once at startup and read-only after.
type Registry struct {
	names []string
}

// NewRegistry builds a registry where the slice index is the class id
func NewRegistry(names []string) *Registry {
	cp := make([]string, len(names))
	copy(cp, names)
	return &Registry{names: cp}
}

// LoadRegistry reads a names file with one class per line, line N being class id N
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read class names from %s", path)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	// Trailing blank lines would otherwise become phantom classes
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, errors.Errorf("class names file %s is empty", path)
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	return &Registry{names: lines}, nil
}

// Name resolves a class id
func (r *Registry) Name(id int) (string, bool) {
	if r == nil || id < 0 || id >= len(r.names) {
		return "", false
	}
	return r.names[id], true
}

// Len returns the number of classes
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns a copy of all class names in id order
func (r *Registry) Names() []string {
	out := make([]string, r.Len())
	if r != nil {
		copy(out, r.names)
	}
	return out
}
