package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/coffee-order/internal/app"
	"github.com/vasiliy-maslov/coffee-order/internal/navigation"
)

const helpText = `views:    ls | goto <path> | back | whoami
catalog:  + <id> | - <id> | open <id>
order:    + | - | qty <n> | name <text> | email <text> | notes <text> | submit
account:  login <user> <password> | register <user> <password> <confirm> [email] | logout
other:    help | quit`

var errQuit = errors.New("quit")

type shell struct {
	app *app.App
	in  io.Reader
	out io.Writer
}

func newShell(a *app.App, in io.Reader, out io.Writer) *shell {
	return &shell{app: a, in: in, out: out}
}

func (s *shell) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	s.show()
	for {
		fmt.Fprint(s.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := s.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
	}
}

func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		s.show()
		return nil
	}
	cmd, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), cmd))

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "ls":
		s.show()
		return nil
	case "goto":
		if len(args) != 1 {
			return errors.New("usage: goto <path>")
		}
		s.app.Navigate(args[0])
	case "back":
		if _, ok := s.app.Back(); !ok {
			return errors.New("no previous location")
		}
	case "whoami":
		s.whoami()
		return nil
	case "+", "-":
		return s.step(cmd, args)
	case "open":
		if len(args) != 1 {
			return errors.New("usage: open <id>")
		}
		v, err := s.app.CatalogView()
		if err != nil {
			return err
		}
		if _, err := v.Open(args[0]); err != nil {
			return err
		}
	case "qty":
		c, err := s.app.OrderView()
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}
		if _, err := c.SetQuantity(n); err != nil {
			return err
		}
	case "name", "email", "notes":
		c, err := s.app.OrderView()
		if err != nil {
			return err
		}
		set := map[string]func(string) error{"name": c.SetName, "email": c.SetEmail, "notes": c.SetNotes}[cmd]
		if err := set(rest); err != nil {
			return err
		}
	case "submit":
		c, err := s.app.OrderView()
		if err != nil {
			return err
		}
		if err := c.Submit(ctx); err != nil {
			log.Debug().Err(err).Msg("shell: submit did not go through")
		}
	case "login":
		return s.login(ctx, args)
	case "register":
		return s.register(ctx, args)
	case "logout":
		if err := s.app.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("shell: server did not confirm logout")
		}
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	s.show()
	return nil
}

func (s *shell) step(sign string, args []string) error {
	if c, err := s.app.OrderView(); err == nil && len(args) == 0 {
		inc := c.Increment
		if sign == "-" {
			inc = c.Decrement
		}
		if _, err := inc(); err != nil {
			return err
		}
		s.show()
		return nil
	}

	v, err := s.app.CatalogView()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <id>", sign)
	}
	inc := v.Increment
	if sign == "-" {
		inc = v.Decrement
	}
	if _, err := inc(args[0]); err != nil {
		return err
	}
	s.show()
	return nil
}

func (s *shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <user> <password>")
	}
	if view, _ := s.app.View(); view != navigation.ViewLogin {
		s.app.Navigate(navigation.PathLogin)
	}
	f, err := s.app.LoginForm()
	if err != nil {
		return err
	}
	f.SetUsername(args[0])
	f.SetPassword(args[1])
	if err := f.Submit(ctx); err != nil {
		log.Debug().Err(err).Msg("shell: login did not go through")
	}
	s.show()
	return nil
}

func (s *shell) register(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: register <user> <password> <confirm> [email]")
	}
	if view, _ := s.app.View(); view != navigation.ViewRegister {
		s.app.Navigate(navigation.PathRegister)
	}
	f, err := s.app.RegisterForm()
	if err != nil {
		return err
	}
	f.SetUsername(args[0])
	f.SetPassword(args[1])
	f.SetConfirm(args[2])
	if len(args) == 4 {
		f.SetEmail(args[3])
	}
	if err := f.Submit(ctx); err != nil {
		log.Debug().Err(err).Msg("shell: registration did not go through")
	}
	s.show()
	return nil
}

func (s *shell) whoami() {
	snap := s.app.Session()
	switch {
	case !snap.Known:
		fmt.Fprintln(s.out, "checking session...")
	case snap.Identity == nil:
		fmt.Fprintln(s.out, "not logged in")
	case snap.Identity.Email == "":
		fmt.Fprintf(s.out, "logged in as %s\n", snap.Identity.Username)
	default:
		fmt.Fprintf(s.out, "logged in as %s <%s>\n", snap.Identity.Username, snap.Identity.Email)
	}
}

func (s *shell) show() {
	loc := s.app.Location()
	view, ok := s.app.View()
	fmt.Fprintf(s.out, "[%s]\n", loc)
	if !ok {
		fmt.Fprintln(s.out, "nothing here, try: goto /")
		return
	}

	switch view {
	case navigation.ViewCatalog:
		v, err := s.app.CatalogView()
		if err != nil {
			return
		}
		rows := v.Rows()
		if len(rows) == 0 {
			fmt.Fprintf(s.out, "catalog %s\n", v.Status())
			return
		}
		for _, r := range rows {
			fmt.Fprintf(s.out, "%4s  %-16s x%d\n", r.Item.ID, r.Item.Name, r.Quantity)
		}
	case navigation.ViewOrder:
		c, err := s.app.OrderView()
		if err != nil {
			return
		}
		f := c.Form()
		if f.Item == nil {
			fmt.Fprintln(s.out, "Loading...")
			return
		}
		fmt.Fprintf(s.out, "%s\nQuantity: %d\n", f.Item.Name, f.Quantity)
		lock := ""
		if f.Locked {
			lock = " (from account)"
		}
		fmt.Fprintf(s.out, "name:  %s%s\n", f.Name, lock)
		if !f.EmailHidden {
			fmt.Fprintf(s.out, "email: %s%s\n", f.Email, lock)
		}
		fmt.Fprintf(s.out, "notes: %s\n", f.Notes)
		if f.Message != "" {
			fmt.Fprintln(s.out, f.Message)
		}
		if f.Error != "" {
			fmt.Fprintf(s.out, "! %s\n", f.Error)
		}
	case navigation.ViewLogin, navigation.ViewRegister:
		s.whoami()
		var errText string
		if f, err := s.app.LoginForm(); err == nil {
			errText = f.State().Error
		} else if f, err := s.app.RegisterForm(); err == nil {
			errText = f.State().Error
		}
		if errText != "" {
			fmt.Fprintf(s.out, "! %s\n", errText)
		}
	}
}
