package cli

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"serotonyl.ru/karmabot/internal/backup"
)

var errNoKey = errors.New("ключ не задан: передайте --key или BACKUP_KEY")

// NewPackCommand создаёт команду pack.
func NewPackCommand(_ *RootOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "pack <src> <dst>",
		Short: "Сжать и зашифровать файл базы",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return errNoKey
			}
			if err := backup.PackFile(args[0], args[1], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", args[0], args[1])
			return nil
		},
	}
	keyFlag(cmd, &key)
	return cmd
}

// NewUnpackCommand создаёт команду unpack.
func NewUnpackCommand(_ *RootOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "unpack <src> <dst>",
		Short: "Расшифровать резервную копию в файл базы",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return errNoKey
			}
			if err := backup.UnpackFile(args[0], args[1], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", args[0], args[1])
			return nil
		},
	}
	keyFlag(cmd, &key)
	return cmd
}

// NewKeygenCommand создаёт команду keygen: случайный ключ для BACKUP_KEY.
func NewKeygenCommand(_ *RootOptions) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Сгенерировать ключ для BACKUP_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 16 {
				return fmt.Errorf("--bytes должен быть не меньше 16")
			}
			buf := make([]byte, size)
			if _, err := rand.Read(buf); err != nil {
				return fmt.Errorf("генерация ключа: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.RawURLEncoding.EncodeToString(buf))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "длина ключа в байтах")
	return cmd
}
