package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	dictverrors "github.com/mmtftr/dictv/internal/errors"
	"github.com/mmtftr/dictv/internal/fetch"
)

// knownFeeds maps a feed name to its download URLs. Only the two language
// directions spec.md names are offered; an unknown feed name is a usage
// error rather than a guess at a URL.
var knownFeeds = map[string]fetch.Feed{
	"de-en": {
		Name:     "de-en",
		Language: "de-en",
		DictURL:  "https://download.freedict.org/dictionaries/deu-eng/deu-eng.dict.dz",
		IndexURL: "https://download.freedict.org/dictionaries/deu-eng/deu-eng.index",
	},
	"en-de": {
		Name:     "en-de",
		Language: "en-de",
		DictURL:  "https://download.freedict.org/dictionaries/eng-deu/eng-deu.dict.dz",
		IndexURL: "https://download.freedict.org/dictionaries/eng-deu/eng-deu.index",
	},
}

func newImportCmd() *cobra.Command {
	var download string
	var local string
	var indexPath string
	var lang string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a DICTD dictionary feed into the data root",
		Long: `Import populates the data root's data/ directory with a .dict.dz/.index
feed pair, either by downloading a known feed or by registering a local
pair you already have on disk. It does not build the search index itself
-- run 'dictv rebuild' afterward to index everything under data/.`,
		RunE: func(c *cobra.Command, _ []string) error {
			if (download == "") == (local == "") {
				return dictverrors.ValidationError("exactly one of --download or --local is required", nil)
			}

			ctx := c.Context()
			mgr, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			if download != "" {
				return runImportDownload(c, mgr.DataPath(), download)
			}
			return runImportLocal(c, mgr.DataPath(), local, indexPath, lang)
		},
	}

	cmd.Flags().StringVar(&download, "download", "", "Download a known feed by name (de-en, en-de)")
	cmd.Flags().StringVar(&local, "local", "", "Path to a local .dict.dz file to register")
	cmd.Flags().StringVar(&indexPath, "index", "", "Path to the matching .index file (required with --local)")
	cmd.Flags().StringVar(&lang, "lang", "", "Language tag for the imported feed (de-en or en-de, required with --local)")

	return cmd
}

func runImportDownload(c *cobra.Command, destDir, feedName string) error {
	feed, ok := knownFeeds[feedName]
	if !ok {
		return dictverrors.ValidationError(fmt.Sprintf("unknown feed %q (known: de-en, en-de)", feedName), nil)
	}

	client := fetch.NewClient()
	results, err := client.FetchAll(c.Context(), []fetch.Feed{feed}, destDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.OutOrStdout(), "Downloaded %s: %s, %s\n", results[0].Name, results[0].DictPath, results[0].IndexPath)
	return nil
}

func runImportLocal(c *cobra.Command, destDir, dictPath, indexPath, lang string) error {
	if indexPath == "" {
		return dictverrors.ValidationError("--index is required with --local", nil)
	}
	if lang == "" {
		return dictverrors.ValidationError("--lang is required with --local", nil)
	}
	if lang != "de-en" && lang != "en-de" {
		return dictverrors.New(dictverrors.ErrCodeInvalidLanguage, fmt.Sprintf("unknown language %q (known: de-en, en-de)", lang), nil)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return dictverrors.IOError("create data directory", err)
	}

	destDict := filepath.Join(destDir, lang+".dict.dz")
	destIndex := filepath.Join(destDir, lang+".index")

	if err := copyFile(dictPath, destDict); err != nil {
		return dictverrors.IOError(fmt.Sprintf("copy %s", dictPath), err)
	}
	if err := copyFile(indexPath, destIndex); err != nil {
		return dictverrors.IOError(fmt.Sprintf("copy %s", indexPath), err)
	}

	fmt.Fprintf(c.OutOrStdout(), "Registered %s: %s, %s\n", lang, destDict, destIndex)
	return nil
}

// copyFile copies src to dst via a temp-file-then-rename so a failed copy
// never leaves a truncated file at dst, mirroring internal/fetch's download
// idiom for the same reason.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, dst)
}
