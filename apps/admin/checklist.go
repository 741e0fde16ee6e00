package main

import (
	"fmt"

	"github.com/trezcool/eicr/core/checklist"
)

// checklist validates the catalogue at path (or the embedded one) and prints its sections.
func (cli *commandLine) checklist(path string) error {
	cat := cli.cat
	if path != "" {
		var err error
		if cat, err = checklist.Load(path); err != nil {
			return err
		}
	} else if cat == nil {
		var err error
		if cat, err = checklist.Default(); err != nil {
			return err
		}
	}

	fmt.Fprintf(cli.out, "Checklist %q\n", cat.Version())
	for _, sec := range cat.Sections() {
		fmt.Fprintf(cli.out, "  %s. %s (%d items)\n", sec.Number, sec.Title, len(sec.Items))
	}
	fmt.Fprintf(cli.out, "%d sections, %d items\n", len(cat.Sections()), cat.TotalItems())
	return nil
}
