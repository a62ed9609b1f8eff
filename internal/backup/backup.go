package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/karmabot/internal/db/sqlite"
	"serotonyl.ru/karmabot/internal/metrics"
)

// Service делает зашифрованные снимки базы SQLite и восстанавливает их.
type Service struct {
	db         *sql.DB
	passphrase string
	path       string
	remote     Remote
}

// NewService создаёт сервис копий. path — файл зашифрованной копии,
// remote может быть nil.
func NewService(db *sql.DB, passphrase, path string, remote Remote) *Service {
	return &Service{db: db, passphrase: passphrase, path: path, remote: remote}
}

// Run снимает копию базы, шифрует её в файл path и выгружает в remote.
func (s *Service) Run(ctx context.Context) error {
	dir, err := os.MkdirTemp(filepath.Dir(s.path), ".karmabot-snapshot-")
	if err != nil {
		return fmt.Errorf("временный каталог для снимка: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	snapshot := filepath.Join(dir, "snapshot.db")
	if err := sqlite.Snapshot(ctx, s.db, snapshot); err != nil {
		return err
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("чтение снимка: %w", err)
	}

	blob, err := Pack(data, s.passphrase)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, blob); err != nil {
		return err
	}
	metrics.BackupBytes.Set(float64(len(blob)))

	logger := log.WithFields(log.Fields{"path": s.path, "bytes": len(blob)})
	if s.remote != nil {
		if err := s.remote.Upload(ctx, blob); err != nil {
			return err
		}
		logger = logger.WithField("remote", true)
	}
	logger.Info("Резервная копия базы сохранена")
	return nil
}

// Restore восстанавливает файл базы dbPath, если его нет.
// Берёт локальную копию, при её отсутствии — удалённую. false — восстанавливать было нечего.
func Restore(ctx context.Context, dbPath, backupPath, passphrase string, remote Remote) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("проверка файла базы: %w", err)
	}

	blob, err := os.ReadFile(backupPath)
	source := backupPath
	switch {
	case errors.Is(err, fs.ErrNotExist) && remote != nil:
		blob, err = remote.Download(ctx)
		source = "remote"
		if errors.Is(err, ErrNoRemoteCopy) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("чтение копии: %w", err)
	}

	data, err := Unpack(blob, passphrase)
	if err != nil {
		return false, err
	}
	if err := writeFileAtomic(dbPath, data); err != nil {
		return false, err
	}
	log.WithFields(log.Fields{"db": dbPath, "source": source}).Warn("База восстановлена из резервной копии")
	return true, nil
}

// PackFile шифрует файл src в dst.
func PackFile(src, dst, passphrase string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("чтение %s: %w", src, err)
	}
	blob, err := Pack(data, passphrase)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, blob)
}

// UnpackFile расшифровывает копию src в dst.
func UnpackFile(src, dst, passphrase string) error {
	blob, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("чтение %s: %w", src, err)
	}
	data, err := Unpack(blob, passphrase)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}

// writeFileAtomic пишет во временный файл рядом и переименовывает его в path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("запись %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("закрытие %s: %w", name, err)
	}
	if err := os.Chmod(name, 0o600); err != nil {
		return fmt.Errorf("права %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("переименование в %s: %w", path, err)
	}
	return nil
}
