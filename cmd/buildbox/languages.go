package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/isdmx/buildbox/sandbox"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages with their images and project files",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := sandbox.NewCatalogFromConfig(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tIMAGE\tFILES")
	for _, lang := range sandbox.Languages() {
		d, err := catalog.Lookup(lang)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", lang, d.Image, strings.Join(d.FilePaths(), ", "))
	}
	return w.Flush()
}
