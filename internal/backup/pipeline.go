package backup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/stevedore/internal/policy"
	"github.com/bnema/stevedore/pkg/bytesize"
	"github.com/bnema/stevedore/pkg/logger"
)

// timestampLayout names artifacts down to the second and sorts
// lexicographically.
const timestampLayout = "20060102_150405"

// Outcome is the result of one pipeline execution. Duration is populated
// even when the backup failed.
type Outcome struct {
	RunID        string
	ArtifactPath string
	SizeBytes    int64
	Duration     time.Duration
}

// Pipeline executes the dump, compress and prune sequence for a policy.
type Pipeline struct {
	root     string
	runner   Runner
	saveWait time.Duration
	nowFn    func() time.Time
}

// NewPipeline builds a pipeline writing under root. A nil runner falls
// back to ExecRunner.
func NewPipeline(root string, runner Runner) *Pipeline {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Pipeline{
		root:     root,
		runner:   runner,
		saveWait: redisSaveWait,
		nowFn:    time.Now,
	}
}

// Execute runs one backup for the policy. A compression failure degrades
// to the uncompressed artifact with a warning; retention pruning only runs
// after a successful dump.
func (p *Pipeline) Execute(ctx context.Context, pol *policy.Policy) (out Outcome, err error) {
	out.RunID = uuid.NewString()
	start := p.nowFn()
	defer func() { out.Duration = p.nowFn().Sub(start) }()

	logger.Info("starting backup",
		"run_id", out.RunID, "target", pol.TargetName, "kind", pol.Kind, "database", pol.Database)

	dir := pol.BackupDir(p.root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return out, fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}

	artifact, err := p.dump(ctx, pol, dir, start.Format(timestampLayout))
	if err != nil {
		return out, err
	}

	if pol.Compression != policy.CompressionNone {
		compressed, err := compressArtifact(artifact, pol.Compression)
		if err != nil {
			logger.Warn("compression failed, keeping uncompressed artifact",
				"run_id", out.RunID, "artifact", artifact, "error", err)
		} else {
			artifact = compressed
		}
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return out, fmt.Errorf("backup artifact missing: %w", err)
	}
	out.ArtifactPath = artifact
	out.SizeBytes = info.Size()

	pruneExpired(dir, pol.RetentionDays, p.nowFn())

	logger.Info("backup completed",
		"run_id", out.RunID, "target", pol.TargetName,
		"artifact", artifact, "size", bytesize.Format(out.SizeBytes))
	return out, nil
}

// run logs and executes one command with credentials masked in the log
// line.
func (p *Pipeline) run(ctx context.Context, cmd Command, secret string) error {
	logger.Debug("running dump command", "cmd", strings.Join(maskSecret(cmd.Argv, secret), " "))
	return p.runner.Run(ctx, cmd)
}

// maskSecret replaces every occurrence of secret in the argv with *** so
// credential material never reaches the logs.
func maskSecret(argv []string, secret string) []string {
	if secret == "" {
		return argv
	}
	masked := make([]string, len(argv))
	for i, arg := range argv {
		masked[i] = strings.ReplaceAll(arg, secret, "***")
	}
	return masked
}
