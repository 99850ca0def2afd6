package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/postgres"
	"github.com/jhoicas/stockcount-api/pkg/config"
	"github.com/jhoicas/stockcount-api/pkg/jwt"
)

// rootOptions flags globales.
type rootOptions struct {
	format string // text | json
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "countctl",
		Short:         "Operación del servicio de conteo físico",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("formato inválido %q: text|json", opts.format)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "formato de salida (text|json)")

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newSessionCommand(opts))
	return cmd
}

// ── migrate ───────────────────────────────────────────────────────────────────

func newMigrateCommand() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL embebidas pendientes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				names, err := postgres.MigrationNames()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := postgres.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "sin migraciones pendientes")
				return nil
			}
			for _, n := range applied {
				fmt.Fprintln(out, "aplicada:", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "solo listar las migraciones embebidas")
	return cmd
}

// ── token ─────────────────────────────────────────────────────────────────────

func newTokenCommand() *cobra.Command {
	var (
		userID, branchID, role string
		minutes                int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un JWT firmado con JWT_SECRET (pruebas y soporte)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case entity.RoleAdmin, entity.RoleSupervisor, entity.RoleCounter:
			default:
				return fmt.Errorf("rol inválido %q: admin|supervisor|counter", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if minutes <= 0 {
				minutes = cfg.JWT.Expiration
			}
			tok, err := jwt.Generate(cfg.JWT.Secret, userID, branchID, role, cfg.JWT.Issuer, minutes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "id del usuario")
	cmd.Flags().StringVar(&branchID, "branch", "", "sucursal (vacío para admin)")
	cmd.Flags().StringVar(&role, "role", entity.RoleCounter, "admin|supervisor|counter")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "vigencia en minutos (0 = JWT_EXPIRATION_MINUTES)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ── session show ──────────────────────────────────────────────────────────────

func newSessionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Consulta de sesiones de conteo",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Muestra la sesión y sus líneas con varianza",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessions := postgres.NewCountSessionRepository(pool)
			lines := postgres.NewCountLineRepository(pool)
			session, err := sessions.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("sesión %s no encontrada", args[0])
			}
			list, err := lines.ListBySession(cmd.Context(), session.ID)
			if err != nil {
				return err
			}
			return printSession(cmd.OutOrStdout(), opts.format, session, list)
		},
	})
	return cmd
}

// printSession escribe la sesión en texto tabulado o JSON.
func printSession(w io.Writer, format string, session *entity.CountSession, lines []*entity.CountLine) error {
	if format == "json" {
		out := struct {
			Session any `json:"session"`
			Lines   any `json:"lines"`
		}{
			Session: count.ToSessionResponse(&count.SessionView{Session: session}),
		}
		items := make([]any, 0, len(lines))
		for _, l := range lines {
			items = append(items, count.ToLineResponse(l, nil))
		}
		out.Lines = items
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "sesión %s  sucursal %s  alcance %s  estado %s\n", session.ID, session.BranchID, session.Scope, session.Status)
	if session.SnapshotAt != nil {
		fmt.Fprintf(w, "snapshot %s  congelada %t\n", session.SnapshotAt.Format("2006-01-02 15:04:05"), session.FreezeMovements)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCTO\tESPERADO\tCONTADO\tVARIANZA\tREVISIÓN")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.ProductCodeVersionID, l.ExpectedQty, l.CountedQty, l.Variance(), l.ReviewStatus)
	}
	return tw.Flush()
}
