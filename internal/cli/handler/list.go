package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bnema/stevedore/internal/app"
	"github.com/bnema/stevedore/internal/common"
)

// ListPolicies scans the container engine once and prints every discovered
// backup policy on stdout, as indented JSON or as YAML.
func ListPolicies(cfg *common.Config, format string) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	if err := a.Manager.Reconcile(context.Background()); err != nil {
		return err
	}
	listings := a.Manager.Listings()

	switch format {
	case "json":
		out, err := json.MarshalIndent(listings, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(listings)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		return fmt.Errorf("unsupported output format %q, want json or yaml", format)
	}
	return nil
}
