package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"

	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/model"
	"github.com/and161185/slotguard/internal/service"
)

// ------- input -------

// prompt prints label and reads one trimmed line.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// pickQuestions lets the user choose service.RequiredQuestions entries from catalog by number.
func (a *app) pickQuestions(catalog []string) ([]model.QuestionAnswer, error) {
	for i, q := range catalog {
		fmt.Fprintf(a.out, "  %d) %s\n", i+1, q)
	}
	sel := make([]model.QuestionAnswer, 0, service.RequiredQuestions)
	for i := 0; i < service.RequiredQuestions; i++ {
		raw, err := a.prompt(fmt.Sprintf("Question #%d (1-%d): ", i+1, len(catalog)))
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > len(catalog) {
			return nil, errs.Invalid(fmt.Sprintf("pick a number between 1 and %d", len(catalog)))
		}
		ans, err := a.prompt("Answer: ")
		if err != nil {
			return nil, err
		}
		sel = append(sel, model.QuestionAnswer{Question: catalog[n-1], Answer: ans})
	}
	return sel, nil
}

// saveChallenge writes the challenge artifact to a temp file for viewing.
func saveChallenge(ch model.Challenge) (string, error) {
	f, err := os.CreateTemp("", "sg-captcha-*.svg")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.WriteString(f, ch.Artifact); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// ------- output -------

func printView(w io.Writer, s service.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range s.View.Months {
		fmt.Fprintf(tw, "%s\n", m.Label)
		for _, d := range m.Days {
			note := ""
			if d.Holder != "" {
				note = "yours"
			}
			for _, p := range s.Pending {
				if p == d.ID {
					note = "pending"
				}
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", d.ID, d.Date, d.Status, note)
		}
	}
	_ = tw.Flush()
	if s.Armed {
		fmt.Fprintln(w, service.CountdownBanner(s.Countdown))
	}
}

func (a *app) newBoard(opts ...service.BoardOption) *service.Board {
	base := []service.BoardOption{
		service.WithTick(a.cfg.TickInterval),
		service.WithInitialCountdown(a.cfg.Countdown),
		service.WithLogger(a.log),
	}
	return service.NewBoard(a.client, a.sess, append(base, opts...)...)
}

// ------- commands -------

// cmdRegister runs both registration stages, or resumes stage 2 with -resume.
func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	pass := fs.String("p", "", "password (prompted when empty)")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -p)")
	resume := fs.Bool("resume", false, "continue a registration interrupted after stage 1")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r := service.NewRegistration(a.client, a.sess, a.log)
	if *resume {
		if err := r.Resume(ctx); err != nil {
			return err
		}
		if r.Stage() != service.RegistrationAwaitingStage2 {
			return errors.New("no registration to resume")
		}
		fmt.Fprintln(a.out, "Resuming registration")
	} else {
		if *name == "" || *email == "" {
			return errs.Invalid("need -name and -email")
		}
		var err error
		if *pass == "" {
			if *pass, err = a.prompt("Password: "); err != nil {
				return err
			}
			if *confirm, err = a.prompt("Confirm password: "); err != nil {
				return err
			}
		} else if *confirm == "" {
			*confirm = *pass
		}
		p := model.Profile{Name: *name, Email: *email, Password: *pass, ConfirmPassword: *confirm}
		if err := r.Begin(ctx, p); err != nil {
			return err
		}
	}

	fmt.Fprintf(a.out, "Choose %d security questions:\n", service.RequiredQuestions)
	sel, err := a.pickQuestions(r.Catalog())
	if err != nil {
		return err
	}
	if err := r.Complete(ctx, r.CorrelationID(), sel); err != nil {
		return err
	}
	fmt.Fprintln(a.out, service.RegistrationCompleteMessage)
	return nil
}

// cmdLogin runs both login stages and stores the issued session.
func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password (prompted when empty)")
	attempts := fs.Int("attempts", 3, "credential attempts before giving up")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errs.Invalid("need -u")
	}
	var err error
	if *pass == "" {
		if *pass, err = a.prompt("Password: "); err != nil {
			return err
		}
	}

	l := service.NewLogin(a.client, a.sess, a.log)
	if err := l.Start(ctx); err != nil {
		return err
	}
	for attempt := 1; ; {
		ch, ok := l.Challenge()
		if !ok {
			if err := l.RefreshChallenge(ctx); err != nil {
				return err
			}
			continue
		}
		path, err := saveChallenge(ch)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "CAPTCHA written to %s\n", path)
		ans, err := a.prompt("CAPTCHA answer (empty for a new one): ")
		_ = os.Remove(path)
		if err != nil {
			return err
		}
		if ans == "" {
			if err := l.RefreshChallenge(ctx); err != nil {
				return err
			}
			continue
		}
		err = l.SubmitCredentials(ctx, *user, *pass, ans)
		if err == nil {
			break
		}
		if !errors.Is(err, errs.ErrLoginRejected) || attempt >= *attempts {
			return err
		}
		fmt.Fprintln(a.out, errs.Message(err))
		attempt++
	}

	questions := l.Questions()
	answers := make([]string, len(questions))
	for i, q := range questions {
		if answers[i], err = a.prompt(q + ": "); err != nil {
			return err
		}
	}
	if err := l.SubmitAnswers(ctx, answers); err != nil {
		return err
	}
	id, _ := l.Identity()
	fmt.Fprintf(a.out, "Signed in as %s\n", id.User.Name)
	return nil
}

// cmdCalendar prints the board; with -watch it follows the countdown until it expires.
func (a *app) cmdCalendar(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calendar", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "follow the countdown")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []service.BoardOption
	var armed atomic.Bool
	var once sync.Once
	expired := make(chan struct{})
	if *watch {
		opts = append(opts, service.WithOnChange(func(s service.Snapshot) {
			if s.Armed {
				armed.Store(true)
				fmt.Fprintln(a.out, service.CountdownBanner(s.Countdown))
				return
			}
			if armed.Load() {
				once.Do(func() { close(expired) })
			}
		}))
	}
	b := a.newBoard(opts...)
	defer b.Close()

	if err := b.LoadView(ctx); err != nil {
		return err
	}
	// the load notification runs synchronously, so armed reflects the fresh view
	if *watch && armed.Load() {
		if _, running := b.Countdown(); !running {
			once.Do(func() { close(expired) })
		}
		select {
		case <-expired:
			fmt.Fprintln(a.out, "No selection made: available slots are now locked.")
		case <-ctx.Done():
		}
	}
	printView(a.out, b.Snapshot())
	return nil
}

// cmdReserve claims one day and prints the reloaded board.
func (a *app) cmdReserve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reserve", flag.ContinueOnError)
	day := fs.String("day", "", "day id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *day == "" {
		return errs.Invalid("need -day")
	}

	b := a.newBoard()
	defer b.Close()
	if err := b.LoadView(ctx); err != nil {
		return err
	}
	if err := b.Reserve(ctx, model.DayID(*day)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reserved %s\n", *day)
	printView(a.out, b.Snapshot())
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	id, err := a.sess.LoadIdentity(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\texpires %s\n", id.User.Name, id.User.Email, id.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.newBoard().Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}
