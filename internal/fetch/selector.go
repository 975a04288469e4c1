package fetch

import (
	"context"
	"errors"
)

// ProjectSelector names a project by id or by a prefix of its name.
type ProjectSelector struct {
	ID   string
	Name string
}

// Validate checks that exactly one field is set.
func (s ProjectSelector) Validate() error {
	switch {
	case s.ID == "" && s.Name == "":
		return errors.New("either a project id or a project name is required")
	case s.ID != "" && s.Name != "":
		return errors.New("project id and project name are mutually exclusive")
	}
	return nil
}

// CommitSelector picks a commit. At most one field may be set; the zero
// value selects the head of the project's default branch.
type CommitSelector struct {
	CommitID   string
	BranchID   string
	BranchName string
}

// Validate checks that at most one field is set.
func (s CommitSelector) Validate() error {
	n := 0
	for _, v := range []string{s.CommitID, s.BranchID, s.BranchName} {
		if v != "" {
			n++
		}
	}
	if n > 1 {
		return errors.New("commit id, branch id and branch name are mutually exclusive")
	}
	return nil
}

// Resolve finds the project and commit ids the selectors point at.
func (c *Client) Resolve(ctx context.Context, ps ProjectSelector, cs CommitSelector) (projectID, commitID string, err error) {
	if err := ps.Validate(); err != nil {
		return "", "", err
	}
	if err := cs.Validate(); err != nil {
		return "", "", err
	}

	var project *Project
	projectID = ps.ID
	if ps.Name != "" {
		c.logger.Debug("searching for project by name", "name", ps.Name)
		projects, err := c.Projects(ctx)
		if err != nil {
			return "", "", err
		}
		p, err := matchPrefix("project", ps.Name, projects, func(p Project) string { return p.Name })
		if err != nil {
			return "", "", err
		}
		project = &p
		projectID = p.ID
	}
	c.logger.Debug("picked project", "project_id", projectID)

	switch {
	case cs.CommitID != "":
		return projectID, cs.CommitID, nil

	case cs.BranchID != "":
		b, err := c.Branch(ctx, projectID, cs.BranchID)
		if err != nil {
			return "", "", err
		}
		return projectID, b.Head.ID, nil

	case cs.BranchName != "":
		c.logger.Debug("searching for branch by name", "name", cs.BranchName)
		branches, err := c.Branches(ctx, projectID)
		if err != nil {
			return "", "", err
		}
		b, err := matchPrefix("branch", cs.BranchName, branches, func(b Branch) string { return b.Name })
		if err != nil {
			return "", "", err
		}
		return projectID, b.Head.ID, nil

	default:
		if project == nil {
			if project, err = c.Project(ctx, projectID); err != nil {
				return "", "", err
			}
		}
		b, err := c.Branch(ctx, projectID, project.DefaultBranch.ID)
		if err != nil {
			return "", "", err
		}
		return projectID, b.Head.ID, nil
	}
}
