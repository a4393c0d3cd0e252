package fuzzer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin-valerio/phink/decoder"
	"github.com/kevin-valerio/phink/metadata"
	"github.com/kevin-valerio/phink/utils"
	"github.com/pkg/errors"
)

// BuildCorpusAndDict writes the corpus seed files and the selector
// dictionary for the fuzzable selectors, in the external-interface formats
// the driver expects.
func BuildCorpusAndDict(selectors []metadata.Selector, corpusDir, dictionaryPath string) error {
	if err := writeCorpus(selectors, corpusDir); err != nil {
		return err
	}
	return writeDictionary(selectors, dictionaryPath)
}

// writeCorpus writes one file per fuzzable selector at
// <corpusDir>/selector_<i>.bin, contents exactly the 4 selector bytes.
func writeCorpus(selectors []metadata.Selector, corpusDir string) error {
	if err := utils.MakeDirectory(corpusDir); err != nil {
		return errors.Wrapf(err, "unable to create corpus directory %q", corpusDir)
	}

	for i, sel := range selectors {
		name := fmt.Sprintf("selector_%d.bin", i)
		path := filepath.Join(corpusDir, name)
		if err := os.WriteFile(path, sel[:], 0o644); err != nil {
			return errors.Wrapf(err, "unable to write corpus seed %q", path)
		}
	}

	engineLogger.Info("wrote ", len(selectors), " corpus seed(s) to ", corpusDir)
	return nil
}

// writeDictionary writes the selector dictionary: a header line declaring
// the framing delimiter, then one `"\xHH\xHH\xHH\xHH"` line per selector.
func writeDictionary(selectors []metadata.Selector, dictionaryPath string) error {
	if dir := filepath.Dir(dictionaryPath); dir != "." {
		if err := utils.MakeDirectory(dir); err != nil {
			return errors.Wrapf(err, "unable to create dictionary directory %q", dir)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "delimiter=%q\n", decoder.Delimiter)
	for _, sel := range selectors {
		fmt.Fprintf(&sb, "\"%s\"\n", escapeSelector(sel))
	}

	if err := os.WriteFile(dictionaryPath, []byte(sb.String()), 0o644); err != nil {
		return errors.Wrapf(err, "unable to write selector dictionary %q", dictionaryPath)
	}

	engineLogger.Info("wrote selector dictionary to ", dictionaryPath)
	return nil
}

// escapeSelector renders sel as a sequence of `\xHH` escapes, one per byte.
func escapeSelector(sel metadata.Selector) string {
	var sb strings.Builder
	for _, b := range sel {
		fmt.Fprintf(&sb, "\\x%02X", b)
	}
	return sb.String()
}
