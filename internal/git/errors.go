package git

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Kind categorizes why a git operation failed
type Kind int

const (
	KindUnknown Kind = iota
	KindNotRepository
	KindNetwork
	KindCorrupt
	KindPermission
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotRepository:
		return "not-a-repository"
	case KindNetwork:
		return "network"
	case KindCorrupt:
		return "corrupt-repository"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ErrNoOrigin is returned by Origin when the working copy has no origin remote
var ErrNoOrigin = errors.New("working copy has no origin remote")

// Error is a failed git operation
type Error struct {
	Kind     Kind
	Op       string
	ExitCode int
	Stderr   string
	err      error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("git %s failed: %v", e.Op, e.err)
	}
	return fmt.Sprintf("git %s failed: %s", e.Op, strings.TrimSpace(e.Stderr))
}

func (e *Error) Unwrap() error {
	return e.err
}

// newError builds an *Error from a failed command, classifying it by stderr
func newError(args []string, stderr string, err error) *Error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	op := ""
	for i := 1; i < len(args); i++ {
		switch {
		case args[i] == "-C" || args[i] == "-c":
			i++
		case !strings.HasPrefix(args[i], "-"):
			op = args[i]
		}
		if op != "" {
			break
		}
	}

	kind := classify(stderr)
	if kind == KindUnknown && errors.Is(err, fs.ErrPermission) {
		kind = KindPermission
	}

	return &Error{
		Kind:     kind,
		Op:       op,
		ExitCode: exitCode,
		Stderr:   stderr,
		err:      err,
	}
}

// Messages git prints for each failure kind, lower-cased. Commands run with
// LC_ALL=C so these are stable.
var kindMessages = []struct {
	kind Kind
	msgs []string
}{
	{KindNotRepository, []string{"not a git repository"}},
	{KindConflict, []string{"conflict", "unmerged files", "would be overwritten by merge", "not possible to fast-forward"}},
	{KindPermission, []string{"permission denied", "authentication failed", "could not read username", "access denied", "returned error: 403"}},
	{KindNetwork, []string{
		"could not resolve host",
		"unable to access",
		"connection refused",
		"connection timed out",
		"operation timed out",
		"network is unreachable",
		"failed to connect",
		"could not read from remote repository",
		"the remote end hung up",
		"early eof",
	}},
	{KindCorrupt, []string{"corrupt", "bad object", "loose object", "bad index file", "broken"}},
}

func classify(stderr string) Kind {
	s := strings.ToLower(stderr)
	for _, km := range kindMessages {
		for _, msg := range km.msgs {
			if strings.Contains(s, msg) {
				return km.kind
			}
		}
	}
	return KindUnknown
}

// KindOf returns the failure kind of err
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var gitErr *Error
	if errors.As(err, &gitErr) {
		return gitErr.Kind
	}

	if errors.Is(err, fs.ErrPermission) {
		return KindPermission
	}

	return KindUnknown
}

// IsNotRepository checks if the error indicates the directory is not a working copy
func IsNotRepository(err error) bool {
	return KindOf(err) == KindNotRepository
}
