package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	MagicLink(ctx context.Context) error
	SignOut(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Ping(ctx context.Context) error
	BoardList(ctx context.Context) error
	BoardPost(ctx context.Context) error
	BoardEdit(ctx context.Context, id string) error
	BoardDelete(ctx context.Context, id string) error
	GalleryList(ctx context.Context) error
	GalleryUpload(ctx context.Context) error
	GalleryDelete(ctx context.Context, id string) error
}

const (
	helpAnonymous = "Available commands: signup, signin, magic, board list, gallery list, ping, exit"
	helpSignedIn  = "Available commands: board list|post|edit <id>|delete <id>, gallery list|upload|delete <id>, whoami, ping, signout, exit"
)

// runREPL reads commands line by line and dispatches them to a until the
// input ends or the user types "exit" or "quit".
//
// The prompt shows the current status (from statusFn). Errors returned by
// handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("sb> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		if quit := dispatch(ctx, a, parts); quit {
			printlnFn("Bye!")
			return
		}
	}
}

func dispatch(ctx context.Context, a execIface, parts []string) (quit bool) {
	var err error
	switch cmd := parts[0]; cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpSignedIn)
		} else {
			printlnFn(helpAnonymous)
		}
	case "signup":
		err = a.SignUp(ctx)
	case "signin", "login":
		err = a.SignIn(ctx)
	case "magic":
		err = a.MagicLink(ctx)
	case "signout", "logout":
		err = a.SignOut(ctx)
	case "whoami":
		err = a.WhoAmI(ctx)
	case "ping":
		err = a.Ping(ctx)
	case "board", "b":
		err = boardCmd(ctx, a, parts[1:])
	case "gallery", "g":
		err = galleryCmd(ctx, a, parts[1:])
	case "exit", "quit":
		return true
	default:
		printlnFn("Unknown command:", cmd)
	}
	if err != nil {
		printlnFn("Error:", describe(err))
	}
	return false
}

func boardCmd(ctx context.Context, a execIface, args []string) error {
	sub, id := subcommand(args)
	switch sub {
	case "", "list", "l":
		return a.BoardList(ctx)
	case "post":
		return a.BoardPost(ctx)
	case "edit":
		return a.BoardEdit(ctx, id)
	case "delete", "rm":
		return a.BoardDelete(ctx, id)
	}
	printlnFn("Usage: board list|post|edit <id>|delete <id>")
	return nil
}

func galleryCmd(ctx context.Context, a execIface, args []string) error {
	sub, id := subcommand(args)
	switch sub {
	case "", "list", "l":
		return a.GalleryList(ctx)
	case "upload":
		return a.GalleryUpload(ctx)
	case "delete", "rm":
		return a.GalleryDelete(ctx, id)
	}
	printlnFn("Usage: gallery list|upload|delete <id>")
	return nil
}

func subcommand(args []string) (sub, id string) {
	if len(args) > 0 {
		sub = args[0]
	}
	if len(args) > 1 {
		id = args[1]
	}
	return sub, id
}
