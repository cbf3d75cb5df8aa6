package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kimhsiao/recordkit/internal/app"
	"github.com/kimhsiao/recordkit/internal/archive"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/hashing"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/providers"
	"github.com/kimhsiao/recordkit/internal/verify"
)

func runVerify(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	rest, err := positional(fs, args, 1, usageVerify)
	if err != nil {
		return err
	}

	v := a.Verifier(verify.WithProgress(func(done, total int, _ models.FileReport) {
		fmt.Fprintln(out, verify.Progress(done, total))
	}))
	report, err := v.Run(ctx, rest[0])
	if report != nil {
		fmt.Fprintln(out)
		if perr := verify.PrintConsole(out, report); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func runCheck(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	algName := fs.String("alg", "sha256", "sha256 or sha512")
	rest, err := positional(fs, args, 2, usageCheck)
	if err != nil {
		return err
	}
	alg, err := hashing.ParseAlgorithm(*algName)
	if err != nil {
		return err
	}

	report, err := a.Verifier().Check(ctx, rest[0], rest[1], alg)
	if report != nil && len(report.Files) == 1 {
		fmt.Fprintln(out, verify.CheckMessage(report.Files[0]))
	}
	return err
}

func runNormalize(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	rest, err := positional(fs, args, 1, usageNormalize)
	if err != nil {
		return err
	}

	summary, err := a.Normalizer.NormalizeFolder(ctx, rest[0])
	if summary != nil {
		fmt.Fprintf(out, "Arquivos convertidos: %d\n", summary.Converted)
		fmt.Fprintf(out, "Arquivos ignorados: %d\n", summary.Skipped)
		fmt.Fprintf(out, "Pastas renomeadas: %d\n", summary.Moved)
		if summary.MoveFailures > 0 {
			fmt.Fprintf(out, "Falhas ao renomear: %d\n", summary.MoveFailures)
		}
	}
	return err
}

func runAccessLogs(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("accesslogs", flag.ContinueOnError)
	rest, err := positional(fs, args, 1, usageAccessLogs)
	if err != nil {
		return err
	}

	info, err := os.Stat(rest[0])
	if err != nil {
		return apperrors.New(apperrors.ErrNotFound, "path not found: "+rest[0])
	}
	if !info.IsDir() {
		sheetPath, err := a.AccessLogs.ProcessFile(ctx, rest[0])
		if sheetPath != "" {
			fmt.Fprintln(out, sheetPath)
		}
		return err
	}

	summary, err := a.AccessLogs.ProcessFolder(ctx, rest[0])
	if summary != nil {
		for _, s := range summary.Sheets {
			fmt.Fprintln(out, s)
		}
		fmt.Fprintf(out, "Planilhas geradas: %d de %d registros\n", len(summary.Sheets), summary.Files)
	}
	return err
}

func runTemplate(_ context.Context, _ *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("template", flag.ContinueOnError)
	rest, err := positional(fs, args, 1, usageTemplate)
	if err != nil {
		return err
	}
	names, err := hashing.WriteTemplate(rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s criado com %d arquivos\n", hashing.TextManifestName, len(names))
	return nil
}

func runTransform(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("transform", flag.ContinueOnError)
	provider := fs.String("provider", "", "microsoft or telegram")
	rest, err := positional(fs, args, 1, usageTransform)
	if err != nil {
		return err
	}
	t, err := providers.ByName(*provider)
	if err != nil {
		return err
	}

	summary, err := a.AccessLogs.Transform(ctx, t, rest[0])
	if summary != nil {
		for _, s := range summary.Sheets {
			fmt.Fprintln(out, s)
		}
		if err == nil {
			fmt.Fprintln(out, summary.Message)
		}
	}
	return err
}

func runUnzip(_ context.Context, _ *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("unzip", flag.ContinueOnError)
	rest, err := positional(fs, args, 1, usageUnzip)
	if err != nil {
		return err
	}
	n, err := archive.UnzipInPlace(rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Arquivos extraídos: %d\n", n)
	return nil
}
