package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-keymanager/pkg/duties"
	"github.com/ethpandaops/validator-keymanager/pkg/keymanager"
	"github.com/ethpandaops/validator-keymanager/pkg/slashing"
	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

var (
	importPasswordFiles      []string
	importSlashingProtection string
	deleteOutput             string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage validator keys",
	Long:  `Import, delete and list the validator keys this client signs with.`,
}

var keysImportCmd = &cobra.Command{
	Use:   "import [keystore_files...]",
	Short: "Import keystores",
	Long: `Imports EIP-2335 keystores. Pass one --password-file per keystore, in the same
order, or a single --password-file shared by all of them. An optional EIP-3076
slashing protection file seeds the signing history of the imported keys.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKeysImport,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete [pubkeys...]",
	Short: "Delete keys and export their slashing protection",
	Long: `Deletes locally stored keys. The slashing protection history of every requested
key is exported in one EIP-3076 document, written to --output when set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKeysDelete,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active keys",
	RunE:  runKeysList,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysImportCmd, keysDeleteCmd, keysListCmd)

	keysImportCmd.Flags().StringSliceVar(&importPasswordFiles, "password-file", nil, "Password file for the keystores (repeatable)")
	keysImportCmd.Flags().StringVar(&importSlashingProtection, "slashing-protection", "", "Path to an EIP-3076 slashing protection file")

	keysDeleteCmd.Flags().StringVar(&deleteOutput, "output", "", "Write the slashing protection export to this file")

	if err := keysImportCmd.MarkFlagRequired("password-file"); err != nil {
		log.WithError(err).Fatalf("Failed to mark flag %s as required", "password-file")
	}
}

func runKeysImport(cmd *cobra.Command, args []string) error {
	if err := initCommon(); err != nil {
		return err
	}

	passwords, err := readPasswords(importPasswordFiles, len(args))
	if err != nil {
		return err
	}

	keystores := make([]string, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read keystore %s", path)
		}

		keystores[i] = string(data)
	}

	var slashingProtection *slashing.Interchange
	if importSlashingProtection != "" {
		slashingProtection, err = slashing.ReadInterchangeFile(importSlashingProtection)
		if err != nil {
			return errors.Wrap(err, "failed to load slashing protection")
		}
	}

	km, err := newKeyManager(cmd.Context())
	if err != nil {
		return err
	}

	defer km.writeMetrics()

	results, err := km.ImportValidators(keystores, passwords, slashingProtection)
	if err != nil {
		return err
	}

	if err := rescheduleDuties(cmd.Context(), km); err != nil {
		return err
	}

	return printJSON(map[string]any{"data": results})
}

func runKeysDelete(cmd *cobra.Command, args []string) error {
	if err := initCommon(); err != nil {
		return err
	}

	pks, err := parsePublicKeys(args)
	if err != nil {
		return err
	}

	km, err := newKeyManager(cmd.Context())
	if err != nil {
		return err
	}

	defer km.writeMetrics()

	resp, err := km.DeleteValidators(pks, cfg.SlashingProtectionDir)

	return writeDeleteResult(os.Stdout, resp, deleteOutput, err)
}

// writeDeleteResult prints the per-key outcomes, also when the slashing
// protection export failed.
func writeDeleteResult(w io.Writer, resp *keymanager.DeleteKeysResponse, output string, deleteErr error) error {
	if deleteErr != nil {
		if resp != nil {
			if err := writeJSON(w, map[string]any{"data": resp.Data}); err != nil {
				log.WithError(err).Error("Failed to print delete results")
			}
		}

		return deleteErr
	}

	if output != "" {
		if err := os.WriteFile(output, []byte(resp.SlashingProtection), 0o600); err != nil {
			return errors.Wrapf(err, "failed to write slashing protection to %s", output)
		}

		log.Infof("Slashing protection written to %s", output)

		return writeJSON(w, map[string]any{"data": resp.Data})
	}

	return writeJSON(w, resp)
}

func runKeysList(cmd *cobra.Command, args []string) error {
	if err := initCommon(); err != nil {
		return err
	}

	km, err := newKeyManager(cmd.Context())
	if err != nil {
		return err
	}

	type keyView struct {
		PublicKey validator.PublicKey `json:"validating_pubkey"`
		Signer    string              `json:"signer"`
		ReadOnly  bool                `json:"readonly"`
	}

	active := km.ActiveValidatorKeys()
	out := make([]keyView, 0, len(active))

	for _, v := range active {
		out = append(out, keyView{
			PublicKey: v.PublicKey(),
			Signer:    v.Signer().Kind().String(),
			ReadOnly:  v.IsReadOnly(),
		})
	}

	return printJSON(map[string]any{"data": out})
}

// rescheduleDuties runs one reschedule pass when an import signalled new validators.
func rescheduleDuties(ctx context.Context, km *keyManager) error {
	if len(km.notifier.C()) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := duties.NewRescheduler(km.notifier, func(context.Context) error {
		defer cancel()

		log.WithField("active", len(km.ActiveValidatorKeys())).Info("Rescheduled duties for active validators")

		return nil
	})

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func readPasswords(files []string, count int) ([]string, error) {
	if len(files) != 1 && len(files) != count {
		return nil, errors.Errorf("expected 1 or %d password files, got %d", count, len(files))
	}

	passwords := make([]string, count)

	for i := range passwords {
		path := files[0]
		if len(files) == count {
			path = files[i]
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read password file %s", path)
		}

		passwords[i] = strings.TrimRight(string(data), "\r\n")
	}

	return passwords, nil
}

func parsePublicKeys(args []string) ([]validator.PublicKey, error) {
	pks := make([]validator.PublicKey, len(args))

	for i, arg := range args {
		pk, err := validator.PublicKeyFromHex(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pubkey %q", arg)
		}

		pks[i] = pk
	}

	return pks, nil
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}

	_, err = fmt.Fprintln(w, string(out))

	return err
}
