// Megaphone CLI — инструмент командной строки для управления
// кампаниями и просмотра записей рассылок. Работает напрямую с БД.
//
// Использование:
//
//	megaphone [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	campaign  Управление кампаниями
//	push      Просмотр записей рассылок
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Megaphone/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "megaphone",
		Short:         "Megaphone CLI — recurring push campaign tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	storeFn := func(ctx context.Context) (*cli.Store, error) { return cli.OpenStore(ctx) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewCampaignCmd(storeFn, outputFn),
		cli.NewPushCmd(storeFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
