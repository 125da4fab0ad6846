package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/pkg/archive"

	"github.com/bnema/stevedore/internal/policy"
	"github.com/bnema/stevedore/pkg/logger"
	"github.com/bnema/stevedore/pkg/validation"
	"github.com/bnema/stevedore/pkg/verify"
)

// redisSaveWait gives the server time to finish writing its RDB snapshot
// after BGSAVE returns.
const redisSaveWait = 2 * time.Second

// dump runs the engine-specific dump tool and returns the artifact path.
// Every supported kind has a case here; adding a kind means adding a case.
func (p *Pipeline) dump(ctx context.Context, pol *policy.Policy, dir, stamp string) (string, error) {
	switch pol.Kind {
	case policy.KindPostgres:
		return p.dumpPostgres(ctx, pol, dir, stamp)
	case policy.KindMySQL, policy.KindMariaDB:
		return p.dumpMySQL(ctx, pol, dir, stamp)
	case policy.KindMongoDB:
		return p.dumpMongoDB(ctx, pol, dir, stamp)
	case policy.KindRedis:
		return p.dumpRedis(ctx, pol, dir, stamp)
	case policy.KindSQLite:
		return p.dumpSQLite(ctx, pol, dir, stamp)
	default:
		return "", fmt.Errorf("unsupported database kind: %s", pol.Kind)
	}
}

func (p *Pipeline) dumpPostgres(ctx context.Context, pol *policy.Policy, dir, stamp string) (string, error) {
	var argv []string
	var name string
	if pol.Database == policy.AllDatabases {
		argv = []string{"pg_dumpall", "-h", pol.Host, "-p", strconv.Itoa(pol.Port)}
		name = "all_databases_" + stamp + ".sql"
	} else {
		argv = []string{"pg_dump", "-h", pol.Host, "-p", strconv.Itoa(pol.Port)}
		name = pol.Database + "_" + stamp + ".sql"
	}
	outFile, err := validation.SafeJoin(dir, name)
	if err != nil {
		return "", err
	}
	if pol.User != "" {
		argv = append(argv, "-U", pol.User)
	}
	if pol.Database != policy.AllDatabases {
		argv = append(argv, "-d", pol.Database)
	}
	argv = append(argv, pol.ExtraArgs...)
	argv = append(argv, "-f", outFile)

	cmd := Command{Argv: argv}
	if pol.Password != "" {
		cmd.Env = []string{"PGPASSWORD=" + pol.Password}
	}
	if err := p.run(ctx, cmd, pol.Password); err != nil {
		return "", fmt.Errorf("%s failed: %w", argv[0], err)
	}
	return outFile, nil
}

func (p *Pipeline) dumpMySQL(ctx context.Context, pol *policy.Policy, dir, stamp string) (string, error) {
	name := pol.Database + "_" + stamp + ".sql"

	argv := []string{"mysqldump", "-h", pol.Host, "-P", strconv.Itoa(pol.Port)}
	if pol.User != "" {
		argv = append(argv, "-u", pol.User)
	}
	if pol.Password != "" {
		argv = append(argv, "-p"+pol.Password)
	}
	if pol.Database == policy.AllDatabases {
		argv = append(argv, "--all-databases")
		name = "all_databases_" + stamp + ".sql"
	} else {
		argv = append(argv, pol.Database)
	}
	argv = append(argv, pol.ExtraArgs...)

	outFile, err := validation.SafeJoin(dir, name)
	if err != nil {
		return "", err
	}

	if err := p.run(ctx, Command{Argv: argv, Stdout: outFile}, pol.Password); err != nil {
		// Drop the partial dump so it can never be mistaken for a
		// good artifact.
		os.Remove(outFile)
		return "", fmt.Errorf("mysqldump failed: %w", err)
	}
	return outFile, nil
}

func (p *Pipeline) dumpMongoDB(ctx context.Context, pol *policy.Policy, dir, stamp string) (string, error) {
	workDir, err := validation.SafeJoin(dir, pol.Database+"_"+stamp)
	if err != nil {
		return "", err
	}

	argv := []string{"mongodump", "--host", pol.Host, "--port", strconv.Itoa(pol.Port)}
	if pol.User != "" {
		argv = append(argv, "-u", pol.User)
	}
	if pol.Password != "" {
		argv = append(argv, "-p", pol.Password, "--authenticationDatabase=admin")
	}
	if pol.Database != policy.AllDatabases {
		argv = append(argv, "-d", pol.Database)
	}
	argv = append(argv, "--out", workDir)
	argv = append(argv, pol.ExtraArgs...)

	if err := p.run(ctx, Command{Argv: argv}, pol.Password); err != nil {
		return "", fmt.Errorf("mongodump failed: %w", err)
	}

	tarPath := workDir + ".tar"
	if err := tarDirectory(workDir, tarPath); err != nil {
		return "", fmt.Errorf("failed to archive mongodump output: %w", err)
	}
	if err := verify.TarArchive(tarPath); err != nil {
		os.Remove(tarPath)
		return "", fmt.Errorf("mongodump archive verification failed: %w", err)
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("failed to remove mongodump work directory", "dir", workDir, "error", err)
	}
	return tarPath, nil
}

func (p *Pipeline) dumpRedis(ctx context.Context, pol *policy.Policy, dir, stamp string) (string, error) {
	base := []string{"redis-cli", "-h", pol.Host, "-p", strconv.Itoa(pol.Port)}
	if pol.Password != "" {
		base = append(base, "-a", pol.Password, "--no-auth-warning")
	}

	save := append(append([]string{}, base...), "BGSAVE")
	if err := p.run(ctx, Command{Argv: save}, pol.Password); err != nil {
		return "", fmt.Errorf("redis BGSAVE failed: %w", err)
	}

	select {
	case <-time.After(p.saveWait):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	outFile := filepath.Join(dir, "dump_"+stamp+".rdb")
	fetch := append(append([]string{}, base...), "--rdb", outFile)
	if err := p.run(ctx, Command{Argv: fetch}, pol.Password); err != nil {
		return "", fmt.Errorf("redis --rdb failed: %w", err)
	}
	return outFile, nil
}

func (p *Pipeline) dumpSQLite(ctx context.Context, pol *policy.Policy, dir, stamp string) (string, error) {
	// For sqlite the database label is a file path inside this
	// container, not a database name.
	source := pol.Database
	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("sqlite database not found: %s", source)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	outFile := filepath.Join(dir, stem+"_"+stamp+".db")

	argv := []string{"sqlite3", source, ".backup " + outFile}
	if err := p.run(ctx, Command{Argv: argv}, ""); err != nil {
		return "", fmt.Errorf("sqlite3 backup failed: %w", err)
	}
	return outFile, nil
}

// tarDirectory archives the contents of dir, paths kept relative to it,
// into a plain tar file at dst.
func tarDirectory(dir, dst string) error {
	rc, err := archive.Tar(dir, archive.Uncompressed)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}
