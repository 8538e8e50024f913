package git

import (
	"errors"
	"io/fs"

	gogit "github.com/go-git/go-git/v5"
)

// Inspector reads working copy metadata without running the git command.
//
// Only dir itself is considered: parent directories are not searched, so a
// material directory nested inside another repository is never mistaken for
// a working copy of that repository.
type Inspector struct{}

// Origin returns the first URL of the origin remote of the working copy at dir.
//
// The returned error is an *Error of kind KindNotRepository when dir is not a
// working copy, KindPermission when it cannot be read and KindCorrupt when
// the repository metadata is unreadable. ErrNoOrigin is returned when the
// working copy has no origin remote.
func (Inspector) Origin(dir string) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", openError(err)
	}

	remote, err := repo.Remote(gogit.DefaultRemoteName)
	if err != nil {
		if errors.Is(err, gogit.ErrRemoteNotFound) {
			return "", ErrNoOrigin
		}
		return "", &Error{Kind: KindCorrupt, Op: "remote", err: err}
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", ErrNoOrigin
	}
	return urls[0], nil
}

func openError(err error) *Error {
	kind := KindCorrupt
	switch {
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		kind = KindNotRepository
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermission
	}
	return &Error{Kind: kind, Op: "open", err: err}
}
