package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snapboard/internal/client/board"
	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
)

var getMultiline = GetMultiline

func (a *App) BoardList(ctx context.Context) error {
	if err := a.board.List(ctx); err != nil {
		return err
	}
	posts := a.board.Posts()
	if len(posts) == 0 {
		fmt.Fprintln(a.out, "The board is empty")
		return nil
	}
	user := a.mirror.CurrentUser()
	for _, p := range posts {
		printPost(a, p, board.CanModify(p, user))
	}
	return nil
}

func printPost(a *App, p models.Post, mine bool) {
	marker := ""
	if mine {
		marker = " *"
	}
	fmt.Fprintf(a.out, "[%s] %s, %s%s\n", shortID(p.ID), p.Author, formatTime(p.CreatedAt), marker)
	for _, line := range strings.Split(p.Content, "\n") {
		fmt.Fprintf(a.out, "    %s\n", line)
	}
}

// BoardPost publishes a post signed with the current display name.
func (a *App) BoardPost(ctx context.Context) error {
	user := a.mirror.CurrentUser()
	if user == nil {
		return common.ErrorUnauthorized
	}
	content, err := getMultiline(a.reader, "Enter post text", a.out)
	if err != nil {
		return err
	}
	p, err := a.board.Create(ctx, user.DisplayName(), content)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Posted [%s]\n", shortID(p.ID))
	return nil
}

func (a *App) BoardEdit(ctx context.Context, id string) error {
	p, err := a.ownedPost(ctx, id)
	if err != nil {
		return err
	}
	content, err := getMultiline(a.reader, "Enter new text", a.out)
	if err != nil {
		return err
	}
	up, err := a.board.Update(ctx, p.ID, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated [%s]\n", shortID(up.ID))
	return nil
}

func (a *App) BoardDelete(ctx context.Context, id string) error {
	p, err := a.ownedPost(ctx, id)
	if err != nil {
		return err
	}
	if err := a.board.Delete(ctx, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted [%s]\n", shortID(p.ID))
	return nil
}

// ownedPost resolves an id or id prefix among the loaded posts and checks
// that the current user owns it.
func (a *App) ownedPost(ctx context.Context, id string) (models.Post, error) {
	user := a.mirror.CurrentUser()
	if user == nil {
		return models.Post{}, common.ErrorUnauthorized
	}
	if len(a.board.Posts()) == 0 {
		if err := a.board.List(ctx); err != nil {
			return models.Post{}, err
		}
	}

	posts := a.board.Posts()
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	full, err := resolveID(ids, id)
	if err != nil {
		return models.Post{}, err
	}
	p, _ := a.board.Get(full)
	if !board.CanModify(p, user) {
		return models.Post{}, common.ErrorForbidden
	}
	return p, nil
}
