package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/fs"
)

const defaultSeedFile = "assets/personas.yaml"

type seedPersona struct {
	Name       string   `yaml:"name"`
	Age        *int     `yaml:"age"`
	Gender     string   `yaml:"gender"`
	Occupation string   `yaml:"occupation"`
	Location   string   `yaml:"location"`
	Bio        string   `yaml:"bio"`
	Traits     []string `yaml:"traits"`
}

type seedFile struct {
	Personas []seedPersona `yaml:"personas"`
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load personas from a YAML file (the built-in set by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.seed(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file listing the personas to create")
	return cmd
}

func readSeedFile(file string) (seedFile, error) {
	var (
		data []byte
		err  error
		sf   seedFile
	)
	if file == "" {
		data, err = appfs.FS.ReadFile(defaultSeedFile)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return sf, errors.Wrap(err, "reading seed file")
	}
	if err = yaml.Unmarshal(data, &sf); err != nil {
		return sf, errors.Wrap(err, "parsing seed file")
	}
	return sf, nil
}

// seed creates the personas listed in file, skipping names that already exist.
func (cli *commandLine) seed(ctx context.Context, file string) error {
	sf, err := readSeedFile(file)
	if err != nil {
		return err
	}

	existing, err := cli.prsSvc.Query(ctx, nil, nil)
	if err != nil {
		return err
	}
	names := make(map[string]bool, len(existing))
	for _, prs := range existing {
		names[core.CleanString(prs.Name, true /* lower */)] = true
	}

	created, skipped := 0, 0
	for _, sp := range sf.Personas {
		key := core.CleanString(sp.Name, true /* lower */)
		if names[key] {
			skipped++
			continue
		}
		prs, err := cli.prsSvc.Create(ctx, persona.NewPersona{
			Name:       sp.Name,
			Age:        sp.Age,
			Gender:     sp.Gender,
			Occupation: sp.Occupation,
			Location:   sp.Location,
			Bio:        sp.Bio,
			Traits:     sp.Traits,
		})
		if err != nil {
			return errors.Wrapf(err, "creating persona %q", sp.Name)
		}
		names[key] = true
		created++
		cli.logger.Debug(fmt.Sprintf("persona %q created", prs.Name), map[string]interface{}{"id": prs.ID})
	}

	fmt.Fprintf(cli.out, "%d personas created, %d skipped\n", created, skipped)
	return nil
}
