package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/giantswarm/confsync/internal/core"
)

func typedFacade(t *testing.T) *core.Facade {
	t.Helper()
	return newTestFacade(t, map[string]string{
		"int":      "42",
		"intPad":   " 7 ",
		"int64":    "9223372036854775807",
		"boolT":    "true",
		"boolOne":  "1",
		"float":    "3.5",
		"duration": "150ms",
		"list":     "a, b ,c",
		"listOne":  "solo",
		"empty":    "",
		"garbage":  "not-a-number",
	}, nil, nil, nil)
}

func TestTypedAccessorsParseValues(t *testing.T) {
	t.Parallel()

	f := typedFacade(t)

	if got := f.GetInt("int", -1); got != 42 {
		t.Errorf("GetInt(int) = %d, want 42", got)
	}
	if got := f.GetInt("intPad", -1); got != 7 {
		t.Errorf("GetInt(intPad) = %d, want 7 (whitespace is trimmed)", got)
	}
	if got := f.GetInt64("int64", -1); got != 9223372036854775807 {
		t.Errorf("GetInt64(int64) = %d, want max int64", got)
	}
	if got := f.GetBool("boolT", false); !got {
		t.Error("GetBool(boolT) = false, want true")
	}
	if got := f.GetBool("boolOne", false); !got {
		t.Error("GetBool(boolOne) = false, want true (strconv forms accepted)")
	}
	if got := f.GetFloat64("float", -1); got != 3.5 {
		t.Errorf("GetFloat64(float) = %v, want 3.5", got)
	}
	if got := f.GetDuration("duration", 0); got != 150*time.Millisecond {
		t.Errorf("GetDuration(duration) = %v, want 150ms", got)
	}
}

func TestTypedAccessorsFallBackToDefault(t *testing.T) {
	t.Parallel()

	f := typedFacade(t)

	if got := f.GetInt("missing", 99); got != 99 {
		t.Errorf("GetInt(missing) = %d, want the call-site default", got)
	}
	if got := f.GetInt("garbage", 99); got != 99 {
		t.Errorf("GetInt(garbage) = %d, want the call-site default", got)
	}
	if got := f.GetBool("garbage", true); !got {
		t.Error("GetBool(garbage) must return the call-site default")
	}
	if got := f.GetDuration("garbage", time.Minute); got != time.Minute {
		t.Errorf("GetDuration(garbage) = %v, want 1m", got)
	}
	if got := f.GetFloat64("missing", 2.5); got != 2.5 {
		t.Errorf("GetFloat64(missing) = %v, want 2.5", got)
	}
	if got := f.GetInt64("garbage", -5); got != -5 {
		t.Errorf("GetInt64(garbage) = %d, want -5", got)
	}
}

func TestTypedEVariantsDistinguishMissingFromUnparsable(t *testing.T) {
	t.Parallel()

	f := typedFacade(t)

	if _, err := f.GetIntE("int"); err != nil {
		t.Errorf("GetIntE(int) error = %v, want nil", err)
	}

	_, err := f.GetIntE("missing")
	if err == nil {
		t.Fatal("GetIntE(missing) error = nil, want non-nil")
	}
	if errors.Is(err, core.ErrTypeMismatch) {
		t.Error("a missing key is not a type mismatch")
	}

	_, err = f.GetIntE("garbage")
	if !errors.Is(err, core.ErrTypeMismatch) {
		t.Errorf("GetIntE(garbage) error = %v, want ErrTypeMismatch", err)
	}

	_, err = f.GetBoolE("garbage")
	if !errors.Is(err, core.ErrTypeMismatch) {
		t.Errorf("GetBoolE(garbage) error = %v, want ErrTypeMismatch", err)
	}
}

func TestGetStringSlice(t *testing.T) {
	t.Parallel()

	f := typedFacade(t)

	if diff := cmp.Diff([]string{"a", "b", "c"}, f.GetStringSlice("list", nil)); diff != "" {
		t.Errorf("GetStringSlice(list) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"solo"}, f.GetStringSlice("listOne", nil)); diff != "" {
		t.Errorf("GetStringSlice(listOne) mismatch (-want +got):\n%s", diff)
	}
	if got := f.GetStringSlice("empty", []string{"def"}); len(got) != 0 {
		t.Errorf("GetStringSlice(empty) = %v, want empty slice (present but blank)", got)
	}
	if diff := cmp.Diff([]string{"def"}, f.GetStringSlice("missing", []string{"def"})); diff != "" {
		t.Errorf("GetStringSlice(missing) mismatch (-want +got):\n%s", diff)
	}
}
