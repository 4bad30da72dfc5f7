package snapshot

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/logger"
)

// Source is a resolved snapshot location: a local path, possibly backed
// by a temporary download.
type Source struct {
	// LocalPath is the snapshot file on disk, original or fetched.
	LocalPath string
	// OriginalInput is the path or URL the user gave.
	OriginalInput string
	// Fetched reports whether the snapshot was downloaded.
	Fetched bool

	cleanup func()
}

// Cleanup removes any temporary download. Safe to call multiple times.
func (s *Source) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Fetch resolves a snapshot input to a local file using go-getter, so
// loads accept local paths alongside https://, git::, s3:: and the other
// go-getter sources. Remote inputs download to a temporary directory the
// returned Source cleans up.
func Fetch(ctx context.Context, input string) (*Source, error) {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.Wrapf(err, "detecting snapshot source %q", input)
	}
	logger.Logger.Debugw("snapshot source detected",
		"input", input,
		"detected", detected,
	)

	parsed, err := url.Parse(detected)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing detected source %q", detected)
	}

	if parsed.Scheme == "file" || parsed.Scheme == "" {
		localPath := input
		if parsed.Scheme == "file" {
			localPath = parsed.Path
		}
		if rest, ok := strings.CutPrefix(localPath, "~/"); ok {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.Wrap(err, "expanding home directory")
			}
			localPath = filepath.Join(home, rest)
		}
		if !filepath.IsAbs(localPath) {
			localPath = filepath.Join(pwd, localPath)
		}
		if _, err := os.Stat(localPath); err != nil {
			return nil, errors.Wrapf(err, "snapshot %s", localPath)
		}
		return &Source{
			LocalPath:     localPath,
			OriginalInput: input,
			cleanup:       func() {},
		}, nil
	}

	return fetchRemote(ctx, input, detected)
}

func fetchRemote(ctx context.Context, input, detected string) (*Source, error) {
	tempDir, err := os.MkdirTemp("", "doxa-snapshot-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating download directory")
	}
	dst := filepath.Join(tempDir, "snapshot.json")

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	logger.Logger.Infow("Fetching snapshot",
		"input", input,
		"destination", dst,
	)
	if err := client.Get(); err != nil {
		os.RemoveAll(tempDir)
		return nil, errors.Wrapf(err, "fetching snapshot %q", input)
	}

	return &Source{
		LocalPath:     dst,
		OriginalInput: input,
		Fetched:       true,
		cleanup: func() {
			logger.Logger.Debugw("Cleaning up fetched snapshot", "path", tempDir)
			os.RemoveAll(tempDir)
		},
	}, nil
}
