package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-keymanager/pkg/keymanager"
)

var remoteImportURL string

var keysRemoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage keys signed by a remote web3signer",
}

var keysRemoteImportCmd = &cobra.Command{
	Use:   "import [pubkeys...]",
	Short: "Register remote-signed keys",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeysRemoteImport,
}

var keysRemoteDeleteCmd = &cobra.Command{
	Use:   "delete [pubkeys...]",
	Short: "Unregister remote-signed keys",
	Long:  `Unregisters remote-signed keys. The remote signer keeps their slashing protection history.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeysRemoteDelete,
}

var keysRemoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active remote-signed keys",
	RunE:  runKeysRemoteList,
}

func init() {
	keysCmd.AddCommand(keysRemoteCmd)
	keysRemoteCmd.AddCommand(keysRemoteImportCmd, keysRemoteDeleteCmd, keysRemoteListCmd)

	keysRemoteImportCmd.Flags().StringVar(&remoteImportURL, "url", "", "Web3signer URL (e.g. 'http://localhost:9000')")

	if err := keysRemoteImportCmd.MarkFlagRequired("url"); err != nil {
		log.WithError(err).Fatalf("Failed to mark flag %s as required", "url")
	}
}

func runKeysRemoteImport(cmd *cobra.Command, args []string) error {
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

	keys := make([]keymanager.ExternalKey, len(pks))
	for i, pk := range pks {
		keys[i] = keymanager.ExternalKey{PublicKey: pk, URL: remoteImportURL}
	}

	results := km.ImportExternalValidators(keys)

	if err := rescheduleDuties(cmd.Context(), km); err != nil {
		return err
	}

	return printJSON(map[string]any{"data": results})
}

func runKeysRemoteDelete(cmd *cobra.Command, args []string) error {
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

	return printJSON(map[string]any{"data": km.DeleteExternalValidators(pks)})
}

func runKeysRemoteList(cmd *cobra.Command, args []string) error {
	if err := initCommon(); err != nil {
		return err
	}

	km, err := newKeyManager(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "failed to start key manager")
	}

	return printJSON(map[string]any{"data": km.ActiveRemoteValidatorKeys()})
}
