package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"helios/api/internal/brief"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

// maxCommentLength is counted in characters, not bytes.
const maxCommentLength = 2000

const commentNotFoundMessage = "Comment not found"

var commentTooLongMessage = fmt.Sprintf("Comment text must be %d characters or less", maxCommentLength)

// AddComment attaches a comment to a brief section. Comments stay open after approval.
func (s *Service) AddComment(ctx context.Context, projectID, author, text, section string) (Comment, error) {
	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)
	section = strings.TrimSpace(section)
	if author == "" || text == "" || section == "" {
		return Comment{}, validationError("Author, text, and section are required")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return Comment{}, validationError(commentTooLongMessage)
	}
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return Comment{}, err
	}

	now := s.timestamp()
	comment := store.Comment{
		ID:        util.NewID("cmt"),
		ProjectID: project.ID,
		Author:    author,
		Text:      text,
		Section:   section,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return Comment{}, s.storeFailure("insert comment", err)
	}
	metadata := map[string]any{"commentId": comment.ID, "section": section}
	if err := s.audit(ctx, project.ID, "Comment added", brief.User(author), metadata); err != nil {
		return Comment{}, err
	}
	s.indexComment(comment)
	return toComment(comment), nil
}

// ListComments returns the project's comments newest first. A blank section lists all of them.
func (s *Service) ListComments(ctx context.Context, projectID, section string) ([]Comment, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListComments(ctx, project.ID, strings.TrimSpace(section))
	if err != nil {
		return nil, s.storeFailure("list comments", err)
	}
	return mapSlice(items, toComment), nil
}

func (s *Service) CommentCountsBySection(ctx context.Context, projectID string) ([]SectionCount, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CommentCountsBySection(ctx, project.ID)
	if err != nil {
		return nil, s.storeFailure("count comments", err)
	}
	return mapSlice(counts, func(c store.SectionCount) SectionCount {
		return SectionCount{Section: c.Section, Count: c.Count}
	}), nil
}

func (s *Service) UpdateComment(ctx context.Context, commentID, text string, actor brief.Actor) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, validationError("Comment text cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return Comment{}, validationError(commentTooLongMessage)
	}
	existing, err := s.requireComment(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	updated, err := s.store.UpdateCommentText(ctx, existing.ID, text, s.timestamp())
	if err != nil {
		if isNotFound(err) {
			return Comment{}, notFoundError(commentNotFoundMessage)
		}
		return Comment{}, s.storeFailure("update comment", err)
	}
	if actor.IsSystem() {
		actor = brief.User(existing.Author)
	}
	metadata := map[string]any{"commentId": updated.ID, "section": updated.Section}
	if err := s.audit(ctx, updated.ProjectID, "Comment updated", actor, metadata); err != nil {
		return Comment{}, err
	}
	s.indexComment(updated)
	return toComment(updated), nil
}

func (s *Service) DeleteComment(ctx context.Context, commentID string, actor brief.Actor) error {
	existing, err := s.requireComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, existing.ID); err != nil {
		if isNotFound(err) {
			return notFoundError(commentNotFoundMessage)
		}
		return s.storeFailure("delete comment", err)
	}
	metadata := map[string]any{"commentId": existing.ID, "section": existing.Section, "author": existing.Author}
	if err := s.audit(ctx, existing.ProjectID, "Comment deleted", actor, metadata); err != nil {
		return err
	}
	if s.search != nil {
		s.search.RemoveComment(existing.ID)
	}
	return nil
}

func (s *Service) requireComment(ctx context.Context, commentID string) (store.Comment, error) {
	comment, err := s.store.GetComment(ctx, strings.TrimSpace(commentID))
	if err != nil {
		if isNotFound(err) {
			return store.Comment{}, notFoundError(commentNotFoundMessage)
		}
		return store.Comment{}, s.storeFailure("get comment", err)
	}
	return comment, nil
}
