package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Ref is a reference to another API resource.
type Ref struct {
	ID string `json:"@id"`
}

// Project is a project resource.
type Project struct {
	ID            string  `json:"@id"`
	Name          string  `json:"name"`
	Created       string  `json:"created"`
	Description   *string `json:"description"`
	DefaultBranch Ref     `json:"defaultBranch"`
}

// Branch is a branch resource of a project.
type Branch struct {
	ID               string `json:"@id"`
	Name             string `json:"name"`
	Created          string `json:"created"`
	Head             Ref    `json:"head"`
	OwningProject    Ref    `json:"owningProject"`
	ReferencedCommit Ref    `json:"referencedCommit"`
}

func escape(segment string) string { return url.PathEscape(segment) }

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.getJSON(ctx, "projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Project fetches one project.
func (c *Client) Project(ctx context.Context, projectID string) (*Project, error) {
	var p Project
	if err := c.getJSON(ctx, "projects/"+escape(projectID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Branches lists the branches of a project.
func (c *Client) Branches(ctx context.Context, projectID string) ([]Branch, error) {
	var branches []Branch
	if err := c.getJSON(ctx, "projects/"+escape(projectID)+"/branches", &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// Branch fetches one branch of a project.
func (c *Client) Branch(ctx context.Context, projectID, branchID string) (*Branch, error) {
	var b Branch
	if err := c.getJSON(ctx, "projects/"+escape(projectID)+"/branches/"+escape(branchID), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ElementsPath is the path of the elements of a commit. A positive pageSize
// asks the server for pages of that size.
func ElementsPath(projectID, commitID string, pageSize int) string {
	path := fmt.Sprintf("projects/%s/commits/%s/elements", escape(projectID), escape(commitID))
	if pageSize > 0 {
		path += "?page[size]=" + strconv.Itoa(pageSize)
	}
	return path
}

// matchPrefix returns the only item whose name starts with prefix.
func matchPrefix[T any](kind, prefix string, items []T, name func(T) string) (T, error) {
	var (
		match T
		found []string
	)
	for _, item := range items {
		if strings.HasPrefix(name(item), prefix) {
			match = item
			found = append(found, name(item))
		}
	}
	switch len(found) {
	case 1:
		return match, nil
	case 0:
		all := make([]string, len(items))
		for i, item := range items {
			all[i] = name(item)
		}
		var zero T
		return zero, fmt.Errorf("%w: no %s matched %q (available: %s)", ErrNoMatch, kind, prefix, strings.Join(all, ", "))
	default:
		var zero T
		return zero, fmt.Errorf("%w: %q matched %d of type %s, please be more specific: %s",
			ErrAmbiguousSelection, prefix, len(found), kind, strings.Join(found, ", "))
	}
}
