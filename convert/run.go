// Package convert implements batch flattening of nested stylesheets.
package convert

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"ncss/archive"
	"ncss/css"
	"ncss/dryer"
	"ncss/state"
	"ncss/templates"
)

// expandFunc returns nested stylesheet text ready to be flattened.
type expandFunc func() (string, error)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	env.Transliterate, env.Templates = cmd.Bool("transliterate"), cmd.Bool("templates")
	env.Verify = cmd.Bool("verify") || env.Cfg.Processing.Verify

	env.Indent = env.Cfg.Processing.Indent
	if cmd.IsSet("indent") {
		env.Indent = cmd.Int("indent")
	}
	if env.Indent < 0 {
		return fmt.Errorf("indentation could not be negative: %d", env.Indent)
	}

	// Source stylesheets without BOM are expected to be UTF-8 unless told
	// otherwise
	cp := cmd.String("encoding")
	if len(cp) == 0 {
		cp = env.Cfg.Processing.Encoding
	}
	if len(cp) > 0 {
		env.Encoding, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.Encoding == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.Encoding = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.Encoding)
			log.Debug("Forcefully converting all stylesheets without BOM", zap.String("charset", n))
		}
	}

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src == "-" {
		if env.Templates {
			log.Warn("Templates are not supported when reading from standard input, ignoring")
		}
		return processStream(ctx, os.Stdin, os.Stdout, log)
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Int("indent", env.Indent))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core flattening logic independently of CLI framework.
// It determines the input type (directory, archive, or single file) and
// processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	ext := env.Cfg.Templates.Extension

	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, filepath.ToSlash(tail), "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		stylesheet, enc, err := isStylesheetFile(head, ext)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if stylesheet && len(tail) == 0 {
			expand := expandFile(head, enc, env)
			if env.Templates {
				if expand, err = expandTemplate(ctx, filepath.Dir(head), filepath.Base(head), log); err != nil {
					return err
				}
			}
			if err := processStylesheet(ctx, expand, filepath.Base(head), dst, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			}
			break
		}
		return fmt.Errorf("input was not recognized as nested stylesheet (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding stylesheets and archives and
// processes them. Partials are never processed directly.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)
	ext, prefix := env.Cfg.Templates.Extension, env.Cfg.Templates.PartialPrefix

	var engine *templates.Engine
	if env.Templates {
		if engine, err = templates.NewEngine(dir, &env.Cfg.Templates, dryer.New(log, env.Indent), log); err != nil {
			return err
		}
	}

	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if env.Templates {
				log.Warn("Templates are not supported inside archives, processing as plain stylesheets", zap.String("file", path))
			}
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		stylesheet, enc, err := isStylesheetFile(path, ext)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !stylesheet {
			log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			return nil
		}
		if strings.HasPrefix(info.Name(), prefix) {
			log.Debug("Skipping partial", zap.String("file", path))
			return nil
		}

		count++

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		expand := expandFile(path, enc, env)
		if engine != nil {
			name, _ := engine.NameFor(src)
			expand = func() (string, error) {
				return engine.Execute(name, nil, nil)
			}
		}
		if err := processStylesheet(ctx, expand, src, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds stylesheets under
// "pathIn" and processes them. "pathOut" is prepended to output names.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)
	ext, prefix := env.Cfg.Templates.Extension, env.Cfg.Templates.PartialPrefix

	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, ext, func(archive string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		stylesheet, enc, err := isStylesheetInArchive(f, ext)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", archive), zap.String("path", f.Name), zap.Error(err))
			return nil
		}
		if !stylesheet {
			log.Debug("Skipping file, not recognized as stylesheet", zap.String("archive", archive), zap.String("file", f.Name))
			return nil
		}
		if base := f.Name[strings.LastIndex(f.Name, "/")+1:]; strings.HasPrefix(base, prefix) {
			log.Debug("Skipping partial", zap.String("archive", archive), zap.String("file", f.Name))
			return nil
		}

		count++

		expand := func() (string, error) {
			r, err := f.Open()
			if err != nil {
				return "", err
			}
			defer r.Close()
			return readStylesheet(r, enc, env)
		}
		if err := processStylesheet(ctx, expand, filepath.Join(pathOut, filepath.FromSlash(f.Name)), dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processStylesheet flattens single stylesheet. "src" is part of the source
// path (always including file name) relative to the original path. When
// actual file was specified it will be just base file name without a path.
// When looking inside archive or directory it will be relative path inside
// archive or directory (including base file name). "dst" is the destination
// directory where flattened file should be written.
func processStylesheet(ctx context.Context, expand expandFunc, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	outputName := buildOutputPath(src, dst, env)

	log.Info("Flattening starting", zap.String("from", src))
	start := time.Now()

	text, err := expand()
	if err != nil {
		return fmt.Errorf("unable to read stylesheet (%s): %w", src, err)
	}

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	proc := dryer.New(log, env.Indent)
	doc := proc.Parse(text)
	result := dryer.Render(doc, proc.Indent())

	if err := os.WriteFile(outputName, []byte(result), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	if env.Verify {
		verifyResult(result, src, log)
	}

	// Store everything for debugging
	if env.Rpt != nil {
		name := filepath.ToSlash(src)
		env.Rpt.StoreData("source/"+name, []byte(text))
		env.Rpt.StoreData("tree/"+name+".txt", []byte(doc.Dump()))
		env.Rpt.StoreData("result/"+filepath.ToSlash(filepath.Base(outputName)), []byte(result))
	}

	log.Info("Flattening completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
	return nil
}

// processStream flattens stylesheet from "r" writing result to "w".
func processStream(ctx context.Context, r io.Reader, w io.Writer, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("unable to read input: %w", err)
	}
	text, err := readStylesheet(br, detectUTF(head), env)
	if err != nil {
		return fmt.Errorf("unable to read input: %w", err)
	}

	result := dryer.New(log, env.Indent).Process(text)
	if env.Verify {
		verifyResult(result, "-", log)
	}
	if _, err := io.WriteString(w, result); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}

func readStylesheet(r io.Reader, enc srcEncoding, env *state.LocalEnv) (string, error) {
	data, err := io.ReadAll(selectReader(r, enc, env.Encoding))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func expandFile(path string, enc srcEncoding, env *state.LocalEnv) expandFunc {
	return func() (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return readStylesheet(f, enc, env)
	}
}

// expandTemplate prepares template engine rooted at "dir" for single file.
func expandTemplate(ctx context.Context, dir, file string, log *zap.Logger) (expandFunc, error) {
	env := state.EnvFromContext(ctx)
	engine, err := templates.NewEngine(dir, &env.Cfg.Templates, dryer.New(log, env.Indent), log)
	if err != nil {
		return nil, err
	}
	name, ok := engine.NameFor(file)
	if !ok {
		return nil, fmt.Errorf("not a template: %s", file)
	}
	return func() (string, error) {
		return engine.Execute(name, nil, nil)
	}, nil
}

func verifyResult(result, src string, log *zap.Logger) *css.Result {
	res := css.NewVerifier(log).Verify([]byte(result), src)
	for _, w := range res.Warnings {
		log.Warn("Flattened stylesheet does not look flat", zap.String("source", src), zap.String("problem", w))
	}
	return res
}
