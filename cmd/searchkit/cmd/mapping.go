package cmd

import (
	"github.com/spf13/cobra"
)

func newMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mapping",
		Short: "Print the backend mapping generated from the configured schema",
		Long: `Print the index mapping the configured backend would create for the
schema in the config file. Elasticsearch mappings are printed as sent;
embedded mappings as the bleve index mapping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.svc.Manager().Connector().Mapping(s.schema)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
}
