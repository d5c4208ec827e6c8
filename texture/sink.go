package texture

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
)

// ImageSink stores images. WriteImage returns a handle the matching
// ImageSource can read back, or an ImageWriteCollision error when name is
// taken.
type ImageSink interface {
	WriteImage(name string, data []byte, mimeType string) (string, error)
}

type ImageSource interface {
	ReadImage(handle string) ([]byte, error)
}

// MaxRetry bounds the numeric suffixes tried on a name collision.
const MaxRetry = 100

// WriteUnique writes data under name, appending a numeric suffix while the
// sink reports collisions.
func WriteUnique(sink ImageSink, name string, data []byte, mimeType string) (string, error) {
	candidate := name
	for i := 1; ; i++ {
		handle, err := sink.WriteImage(candidate, data, mimeType)
		if err == nil {
			return handle, nil
		}
		if !vrmerr.Is(err, vrmerr.ImageWriteCollision) || i > MaxRetry {
			return "", err
		}
		candidate = WithSuffix(name, i)
	}
}

// DirSink writes images as files under Dir. Existing files are never
// overwritten.
type DirSink struct {
	Dir string
}

func (s *DirSink) WriteImage(name string, data []byte, mimeType string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", errors.WithStack(err)
	}
	p := filepath.Join(s.Dir, name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return "", vrmerr.New(vrmerr.ImageWriteCollision, "texture.DirSink", "%s already exists", p)
	}
	if err != nil {
		return "", errors.WithStack(err)
	}
	err = writeData(f, data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return "", errors.Wrap(err, p)
	}
	return p, nil
}

var writeData = func(f *os.File, data []byte) error {
	_, err := f.Write(data)
	return err
}

func (s *DirSink) ReadImage(handle string) ([]byte, error) {
	p := handle
	if !filepath.IsAbs(p) {
		if _, err := os.Stat(p); err != nil {
			p = filepath.Join(s.Dir, handle)
		}
	}
	data, err := os.ReadFile(p)
	return data, errors.WithStack(err)
}

// MemoryImage is an image held by a MemorySink.
type MemoryImage struct {
	Data     []byte
	MimeType string
}

// MemorySink keeps images in memory keyed by name.
type MemorySink struct {
	mu     sync.Mutex
	Images map[string]*MemoryImage
}

func NewMemorySink() *MemorySink {
	return &MemorySink{Images: map[string]*MemoryImage{}}
}

func (s *MemorySink) WriteImage(name string, data []byte, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Images[name]; ok {
		return "", vrmerr.New(vrmerr.ImageWriteCollision, "texture.MemorySink", "%s already exists", name)
	}
	s.Images[name] = &MemoryImage{Data: data, MimeType: mimeType}
	return name, nil
}

func (s *MemorySink) ReadImage(handle string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.Images[handle]
	if !ok {
		return nil, errors.Errorf("image %q not found", handle)
	}
	return img.Data, nil
}

func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.Images))
	for n := range s.Images {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
