// Package cli — команды karmactl: резервные копии и разовые операции с кармой.
package cli

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions — общие флаги всех команд.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand создаёт корневую команду karmactl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "karmactl",
		Short: "Администрирование бота кармы",
		Long: `karmactl шифрует и расшифровывает резервные копии базы,
запускает подведение итогов голосований и печатает рейтинг кармы.

Команды sweep и digest читают ту же конфигурацию из окружения, что и бот.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.ErrOrStderr())
			log.SetLevel(log.WarnLevel)
			if opts.Verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "подробный лог")

	cmd.AddCommand(NewPackCommand(opts))
	cmd.AddCommand(NewUnpackCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewDigestCommand(opts))

	return cmd
}

// keyFlag добавляет флаг --key со значением по умолчанию из BACKUP_KEY.
func keyFlag(cmd *cobra.Command, key *string) {
	cmd.Flags().StringVarP(key, "key", "k", os.Getenv("BACKUP_KEY"), "ключ шифрования (по умолчанию BACKUP_KEY)")
}
