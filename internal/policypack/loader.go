// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package policypack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/storage/memory"
	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gopkg.in/yaml.v3"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/logging"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// Loader owns the currently active pack plus the machinery to fetch, verify,
// and (for local files) hot-reload it. A Loader is the only long-lived,
// shared-process-wide state this package introduces, matching spec.md §9's
// instruction to keep shared mutable state to small guarded records.
type Loader struct {
	mu sync.RWMutex

	sourcePath string
	watch      bool

	digest    string
	snapshot  []byte // zstd-compressed canonical JSON
	compiled  []compiledPolicy
	version   string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLoader fetches and compiles the pack at path once. path is a bare
// filesystem path, or carries a `git://` or `s3://` scheme per
// internal/policypack's source resolution. A load failure here is the
// startup-fatal error spec.md §4.3 requires ("If the pack is missing or
// malformed at load time, the pipeline fails startup").
func NewLoader(path string, watchReload bool) (*Loader, error) {
	l := &Loader{sourcePath: path, watch: watchReload}
	if err := l.reloadLocked(context.Background()); err != nil {
		return nil, err
	}
	if watchReload && isLocalPath(path) {
		if err := l.startWatch(); err != nil {
			logging.ForRequest("").WithError(err).Warn("policypack: hot reload watcher failed to start")
		}
	}
	return l, nil
}

// Digest returns the currently active pack's canonical SHA-256 hex digest.
func (l *Loader) Digest() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.digest
}

// Select evaluates every policy in pack order against s and returns up to
// topK matches as an EvidenceOutput (spec.md §4.3's algorithm).
func (l *Loader) Select(s types.StructuredIntake, topK int) types.EvidenceOutput {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if topK <= 0 {
		topK = 2
	}

	env := envFor(s)
	var citations []types.ProtocolCitation
	var actions []string
	seen := make(map[string]bool)

	for _, cp := range l.compiled {
		if len(citations) >= topK {
			break
		}
		matched, err := cp.matches(env)
		if err != nil || !matched {
			continue
		}
		citations = append(citations, types.ProtocolCitation{
			PolicyID:           cp.policy.ID,
			Title:              cp.policy.Title,
			Citation:           cp.policy.Citation,
			RecommendedActions: cp.policy.RecommendedActions,
		})
		for _, a := range cp.policy.RecommendedActions {
			if !seen[a] {
				seen[a] = true
				actions = append(actions, a)
			}
		}
	}

	return types.EvidenceOutput{
		RecommendedActionsFromPolicy: actions,
		ProtocolCitations:            citations,
		PolicyPackSHA256:             l.digest,
		PolicyPackSource:             l.sourcePath,
	}
}

// Reload re-fetches and re-verifies the pack from its original source,
// swapping it in atomically only if loading succeeds; a bad reload leaves
// the previous pack active.
func (l *Loader) Reload() error {
	return l.reloadLocked(context.Background())
}

func (l *Loader) reloadLocked(ctx context.Context) error {
	raw, err := fetchRaw(ctx, l.sourcePath)
	if err != nil {
		return fmt.Errorf("policypack: fetch %s: %w", l.sourcePath, err)
	}

	var pack Pack
	if err := unmarshalPack(raw, &pack); err != nil {
		return fmt.Errorf("policypack: parse %s: %w", l.sourcePath, err)
	}
	if len(pack.Policies) == 0 {
		return fmt.Errorf("policypack: %s: pack has no policies", l.sourcePath)
	}

	compiled, err := compile(pack)
	if err != nil {
		return err
	}

	// Hash the decoded pack, not the raw source bytes: the pack may have
	// been authored as YAML, and spec.md §4.7's canonical digest is defined
	// over the pack's JSON serialization regardless of source format.
	packJSON, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("policypack: marshal %s: %w", l.sourcePath, err)
	}

	digest, canonical, err := hashCanonical(packJSON)
	if err != nil {
		return err
	}

	compressed, err := compressSnapshot(canonical)
	if err != nil {
		return fmt.Errorf("policypack: compress snapshot: %w", err)
	}

	l.mu.Lock()
	l.compiled = compiled
	l.digest = digest
	l.snapshot = compressed
	l.version = pack.Version
	l.mu.Unlock()
	return nil
}

// CanonicalJSON decompresses and returns the active pack's canonical bytes,
// for the reproducibility check in spec.md §8 ("re-serializing the loaded
// pack and rehashing reproduces policy_pack_sha256").
func (l *Loader) CanonicalJSON() ([]byte, error) {
	l.mu.RLock()
	snapshot := l.snapshot
	l.mu.RUnlock()
	return decompressSnapshot(snapshot)
}

func (l *Loader) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(l.sourcePath)); err != nil {
		watcher.Close()
		return err
	}

	l.watcher = watcher
	l.done = make(chan struct{})
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	log := logging.ForRequest("")
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.sourcePath) {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(200 * time.Millisecond)
			}
		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			if err := l.Reload(); err != nil {
				log.WithError(err).Warn("policypack: hot reload failed, keeping previous pack")
			} else {
				log.WithField("policy_pack_sha256", l.Digest()).Info("policypack: reloaded")
			}
		}
	}
}

// Close stops the hot-reload watcher, if any.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	return l.watcher.Close()
}

func unmarshalPack(raw []byte, pack *Pack) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return gojson.Unmarshal(trimmed, pack)
	}
	return yaml.Unmarshal(raw, pack)
}

func isLocalPath(path string) bool {
	return !strings.Contains(path, "://")
}

// fetchRaw resolves a policy pack source by scheme: a bare path or file://
// reads local disk, git:// clones a repository and reads one path from its
// default branch, s3:// fetches one object from an S3-compatible bucket.
func fetchRaw(ctx context.Context, path string) ([]byte, error) {
	switch {
	case strings.HasPrefix(path, "git://"):
		return fetchGit(ctx, path)
	case strings.HasPrefix(path, "s3://"):
		return fetchS3(ctx, path)
	case strings.HasPrefix(path, "file://"):
		return os.ReadFile(strings.TrimPrefix(path, "file://"))
	default:
		return os.ReadFile(path)
	}
}

// fetchGit resolves `git://host/org/repo.git#path/in/repo` by cloning the
// repository into memory and reading one file from the checked-out worktree.
func fetchGit(ctx context.Context, path string) ([]byte, error) {
	u := strings.TrimPrefix(path, "git://")
	repoURL, filePath, ok := strings.Cut(u, "#")
	if !ok {
		return nil, fmt.Errorf("git source %q missing #path", path)
	}

	fs := memfs.New()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
		URL:   "https://" + repoURL,
		Depth: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}
	_ = repo

	f, err := fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", filePath, repoURL, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// fetchS3 resolves `s3://bucket/key` against the endpoint/credentials named
// by TRIAGE_POLICY_S3_ENDPOINT, TRIAGE_POLICY_S3_ACCESS_KEY, and
// TRIAGE_POLICY_S3_SECRET_KEY.
func fetchS3(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	endpoint := os.Getenv("TRIAGE_POLICY_S3_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("s3 source requires TRIAGE_POLICY_S3_ENDPOINT")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			os.Getenv("TRIAGE_POLICY_S3_ACCESS_KEY"),
			os.Getenv("TRIAGE_POLICY_S3_SECRET_KEY"),
			"",
		),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func compressSnapshot(canonical []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(canonical, nil), nil
}

func decompressSnapshot(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
