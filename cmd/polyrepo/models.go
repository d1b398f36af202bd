package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"polyrepo/polymorphic"
)

// 演示用的实体：广告的所有者可以是用户或商户

type User struct {
	ID      int64     `db:"id"`
	Name    string    `db:"name"`
	Adverts []*Advert `db:"-"`
}

type Merchant struct {
	ID      int64     `db:"id"`
	Name    string    `db:"name"`
	Adverts []*Advert `db:"-"`
}

type Advert struct {
	ID         int64  `db:"id"`
	Title      string `db:"title"`
	EntityID   int64  `db:"entityId"`
	EntityType string `db:"entityType"`
	Owner      any    `db:"-"`
}

var tables = map[string]string{
	"User":     "users",
	"Merchant": "merchants",
	"Advert":   "adverts",
}

func tableName(m *polymorphic.Model) string { return tables[m.Name()] }

func newRegistry() (*polymorphic.Registry, error) {
	reg := polymorphic.NewRegistry()
	err := reg.Register(
		polymorphic.NewModel("User", func() *User { return &User{} }).
			Int64Column("id", func(u *User) *int64 { return &u.ID }).
			StringColumn("name", func(u *User) *string { return &u.Name }).
			Children("adverts", polymorphic.Many(
				func(u *User) []*Advert { return u.Adverts },
				func(u *User, v []*Advert) { u.Adverts = v },
			), polymorphic.WithTargets("Advert")),
		polymorphic.NewModel("Merchant", func() *Merchant { return &Merchant{} }).
			Int64Column("id", func(m *Merchant) *int64 { return &m.ID }).
			StringColumn("name", func(m *Merchant) *string { return &m.Name }).
			Children("adverts", polymorphic.Many(
				func(m *Merchant) []*Advert { return m.Adverts },
				func(m *Merchant, v []*Advert) { m.Adverts = v },
			), polymorphic.WithTargets("Advert"), polymorphic.WithDeleteBeforeUpdate()),
		polymorphic.NewModel("Advert", func() *Advert { return &Advert{} }).
			Int64Column("id", func(a *Advert) *int64 { return &a.ID }).
			StringColumn("title", func(a *Advert) *string { return &a.Title }).
			Int64Column("entityId", func(a *Advert) *int64 { return &a.EntityID }).
			StringColumn("entityType", func(a *Advert) *string { return &a.EntityType }).
			Parent("owner", polymorphic.One(
				func(a *Advert) any { return a.Owner },
				func(a *Advert, v any) { a.Owner = v },
			), polymorphic.WithTargets("User", "Merchant")),
	)
	if err != nil {
		return nil, err
	}
	return reg, reg.Freeze()
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print registered models and their associations",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry()
			if err != nil {
				return err
			}
			printModels(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func printModels(w io.Writer, reg *polymorphic.Registry) {
	for _, m := range reg.Models() {
		fmt.Fprintf(w, "%s (key %s, columns %s)\n", m.Name(), m.KeyColumn(), strings.Join(m.Columns(), ", "))
		for _, a := range m.Associations() {
			targets := "any"
			if len(a.TargetTypes) > 0 {
				targets = strings.Join(a.TargetTypes, "|")
			}
			fmt.Fprintf(w, "  %-8s %-10s -> %s via (%s, %s)", a.Direction, a.PropertyKey, targets, a.IDColumn, a.TypeColumn)
			if a.DeleteBeforeUpdate {
				fmt.Fprint(w, " delete-before-update")
			}
			fmt.Fprintln(w)
		}
	}
}
