package vrmerr

import (
	"io/ioutil"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var errSentinel = errors.New("sentinel")

func TestKindOf(t *testing.T) {
	err := Wrapf(ContainerFormat, "glb.Parse", errSentinel, "chunk %d", 2)
	if KindOf(err) != ContainerFormat {
		t.Errorf("KindOf = %v", KindOf(err))
	}
	if !errors.Is(err, errSentinel) {
		t.Error("sentinel not reachable through chain")
	}
	outer := errors.Wrap(err, "import")
	if !Is(outer, ContainerFormat) {
		t.Error("kind lost by outer wrap")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error classified")
	}
	if Wrap(OutOfBounds, "x", nil) != nil {
		t.Error("Wrap(nil) != nil")
	}
}

func TestFatal(t *testing.T) {
	for _, c := range []struct {
		kind  Kind
		fatal bool
	}{
		{ContainerFormat, true},
		{LicenseRestricted, true},
		{OutOfBounds, true},
		{UnknownMaterialProperty, false},
		{UnknownTexture, false},
		{ImageWriteCollision, false},
	} {
		if c.kind.Fatal() != c.fatal {
			t.Errorf("%v.Fatal() = %v", c.kind, !c.fatal)
		}
	}
}

func TestWarnings(t *testing.T) {
	logger := logrus.New()
	logger.Out = ioutil.Discard
	w := NewWarnings(logger)
	w.Add(UnknownTexture, "mat0", "texture %q not in schema", "_Foo")
	w.AddError("img", New(ImageWriteCollision, "write", "exists"))
	if w.Len() != 2 {
		t.Fatalf("Len = %d", w.Len())
	}
	if !w.Has(ImageWriteCollision) || w.Has(OutOfBounds) {
		t.Error("Has mismatch")
	}
	list := w.List()
	if list[0].Subject != "mat0" || list[0].Message != `texture "_Foo" not in schema` {
		t.Errorf("unexpected warning %v", list[0])
	}
}
