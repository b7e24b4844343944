package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bibliotech/internal/util"
	"bibliotech/pkg/domain"
	"bibliotech/services/library/internal/config"
	"bibliotech/services/library/internal/controller"
	"bibliotech/services/library/internal/editor"
	"bibliotech/services/library/internal/libclient"
	"bibliotech/services/library/internal/session"
	"bibliotech/services/library/internal/view"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("BIBLIOTECH_LIBRARY_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	interval, err := cfg.Interval()
	if err != nil {
		log.Fatalf("failed to parse health interval: %v", err)
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		log.Fatalf("failed to parse health timeout: %v", err)
	}

	client := libclient.NewClient(cfg.APIBaseURL, libclient.WithHealthTimeout(timeout))
	library := controller.New(client, controller.WithHealthInterval(interval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		library.RunHealthProbe(gctx)
		return nil
	})
	g.Go(func() error {
		defer stop()
		return runShell(gctx, client, library)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("shell error: %v", err)
	}
}

type shell struct {
	client  *libclient.Client
	library *controller.Library
	edit    *editor.Editor
	params  view.Params
	out     *bufio.Writer
}

func runShell(ctx context.Context, client *libclient.Client, library *controller.Library) error {
	sh := &shell{
		client:  client,
		library: library,
		edit:    editor.New(),
		params:  view.DefaultParams(),
		out:     bufio.NewWriter(os.Stdout),
	}
	sh.printf("BiblioTech. Type 'help' for commands.\n")
	sh.flush()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args := tokenize(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}
		sh.dispatch(ctx, args[0], args[1:])
		sh.flush()
	}
	return scanner.Err()
}

func (sh *shell) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		sh.printHelp()
	case "status":
		sh.cmdStatus()
	case "register":
		sh.cmdRegister(ctx, args)
	case "login":
		sh.cmdLogin(ctx, args)
	case "logout":
		sh.library.SetSession(ctx, nil)
		sh.printf("logged out\n")
	case "list":
		sh.cmdList(args)
	case "add":
		sh.cmdAdd(ctx, args)
	case "edit":
		sh.cmdEdit(ctx, args)
	case "delete":
		sh.cmdDelete(ctx, args)
	default:
		sh.printf("unknown command %q, try 'help'\n", cmd)
	}
}

func (sh *shell) printHelp() {
	sh.printf(`commands:
  status                                  backend connectivity
  register <email> <password> [username]  create an account and sign in
  login <email> <password>                sign in
  logout                                  sign out
  list [flags]                            show the library
        -mine  -status reading|completed|wishlist|all
        -q <text>  -sort title|author|createdAt  -order asc|desc
  add    -title T -author A [-desc D] [-status S] [-cover file]
  edit   <id> [same flags as add]
  delete <id>
  quit
`)
}

func (sh *shell) cmdStatus() {
	h := sh.library.Healthy()
	switch {
	case !h.Reachable:
		sh.printf("backend: offline\n")
	case !h.StorageReady:
		sh.printf("backend: online, storage degraded\n")
	default:
		sh.printf("backend: online\n")
	}
}

func (sh *shell) cmdRegister(ctx context.Context, args []string) {
	if len(args) < 2 {
		sh.printf("usage: register <email> <password> [username]\n")
		return
	}
	candidate := domain.User{Email: args[0], Password: args[1]}
	if len(args) > 2 {
		candidate.Username = args[2]
	}
	user, err := sh.client.Register(ctx, candidate)
	if err != nil {
		sh.printf("registration failed: %v\n", err)
		return
	}
	sh.library.SetSession(ctx, session.New(user))
	sh.printf("welcome, %s\n", user.UsernameOrDefault())
}

func (sh *shell) cmdLogin(ctx context.Context, args []string) {
	if len(args) != 2 {
		sh.printf("usage: login <email> <password>\n")
		return
	}
	user, err := sh.client.Login(ctx, args[0], args[1])
	if err != nil {
		sh.printf("login failed: %v\n", err)
		return
	}
	sh.library.SetSession(ctx, session.New(user))
	sh.printf("welcome back, %s\n", user.UsernameOrDefault())
}

func (sh *shell) requireSession() bool {
	if sh.library.Session() == nil {
		sh.printf("sign in first (login <email> <password>)\n")
		return false
	}
	return true
}

func (sh *shell) cmdList(args []string) {
	if !sh.requireSession() {
		return
	}
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(sh.out)
	mine := fs.Bool("mine", sh.params.Ownership == view.OwnershipMine, "only my books")
	status := fs.String("status", sh.params.Status, "status filter")
	query := fs.String("q", sh.params.Query, "search in title and author")
	sortBy := fs.String("sort", string(sh.params.SortField), "sort field")
	order := fs.String("order", string(sh.params.SortOrder), "sort order")
	if err := fs.Parse(args); err != nil {
		return
	}

	p := sh.params
	p.Ownership = view.OwnershipAll
	if *mine {
		p.Ownership = view.OwnershipMine
	}
	p.Status = *status
	if _, ok := domain.ParseBookStatus(p.Status); !ok && p.Status != view.StatusAll {
		sh.printf("unknown status %q\n", p.Status)
		return
	}
	p.Query = *query
	switch view.SortField(*sortBy) {
	case view.SortByTitle, view.SortByAuthor, view.SortByCreatedAt:
		p.SortField = view.SortField(*sortBy)
	default:
		sh.printf("unknown sort field %q\n", *sortBy)
		return
	}
	switch view.SortOrder(*order) {
	case view.Ascending, view.Descending:
		p.SortOrder = view.SortOrder(*order)
	default:
		sh.printf("unknown sort order %q\n", *order)
		return
	}
	sh.params = p

	books := sh.library.View(p)
	if len(books) == 0 {
		sh.printf("no books match\n")
		return
	}
	for _, b := range books {
		sh.printf("%s  %-30s %-20s %s\n", b.ID, b.Title, b.Author, b.Status.DisplayLabel())
	}
	sh.printf("%d of %d books\n", len(books), len(sh.library.Books()))
}

func (sh *shell) fillDraft(args []string) (coverPath string, ok bool) {
	fs := flag.NewFlagSet("draft", flag.ContinueOnError)
	fs.SetOutput(sh.out)
	d := sh.edit.Draft()
	title := fs.String("title", d.Title, "book title")
	author := fs.String("author", d.Author, "book author")
	desc := fs.String("desc", d.Description, "description")
	status := fs.String("status", string(d.Status), "reading status")
	cover := fs.String("cover", "", "image file to attach")
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	d.Title = *title
	d.Author = *author
	d.Description = *desc
	if *status != "" {
		parsed, valid := domain.ParseBookStatus(*status)
		if !valid {
			sh.printf("unknown status %q\n", *status)
			return "", false
		}
		d.Status = parsed
	}
	return *cover, true
}

func (sh *shell) submitDraft(ctx context.Context, coverPath string, save func(context.Context, domain.Book) bool) {
	if coverPath != "" {
		if err := sh.edit.AttachImageFile(coverPath); err != nil {
			sh.printf("cover rejected: %v\n", err)
			return
		}
	}
	book, err := sh.edit.Submit(sh.library.Session().UserID())
	if err != nil {
		sh.printf("cannot save: %v\n", err)
		return
	}
	if !save(ctx, book) {
		sh.printf("backend rejected the change, nothing saved\n")
		return
	}
	sh.printf("saved %s\n", book.ID)
}

func (sh *shell) cmdAdd(ctx context.Context, args []string) {
	if !sh.requireSession() {
		return
	}
	sh.edit.Begin()
	coverPath, ok := sh.fillDraft(args)
	if !ok {
		sh.edit.Discard()
		return
	}
	sh.submitDraft(ctx, coverPath, sh.library.AddBook)
}

func (sh *shell) cmdEdit(ctx context.Context, args []string) {
	if !sh.requireSession() {
		return
	}
	if len(args) == 0 {
		sh.printf("usage: edit <id> [flags]\n")
		return
	}
	id := args[0]
	var target *domain.Book
	for _, b := range sh.library.Books() {
		if b.ID == id {
			target = &b
			break
		}
	}
	if target == nil {
		sh.printf("no book with id %s\n", id)
		return
	}
	sh.edit.BeginEdit(*target)
	coverPath, ok := sh.fillDraft(args[1:])
	if !ok {
		sh.edit.Discard()
		return
	}
	sh.submitDraft(ctx, coverPath, sh.library.SaveBook)
}

func (sh *shell) cmdDelete(ctx context.Context, args []string) {
	if !sh.requireSession() {
		return
	}
	if len(args) != 1 {
		sh.printf("usage: delete <id>\n")
		return
	}
	if !sh.library.RemoveBook(ctx, args[0]) {
		sh.printf("backend rejected the delete\n")
		return
	}
	sh.printf("deleted %s\n", args[0])
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) flush() {
	_ = sh.out.Flush()
}

// tokenize splits a command line on whitespace, honoring double quotes so
// titles with spaces survive.
func tokenize(line string) []string {
	var args []string
	var cur strings.Builder
	inQuotes := false
	flushToken := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ' ' || r == '\t'):
			flushToken()
		default:
			cur.WriteRune(r)
		}
	}
	flushToken()
	return args
}
