package main

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"yatube/internal/forms"
	"yatube/internal/models"
	"yatube/internal/store"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

var (
	groupTitle       string
	groupSlug        string
	groupDescription string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage post groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a group",
	Args:  cobra.NoArgs,
	RunE:  groupCreate,
}

var groupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List groups",
	Args:    cobra.NoArgs,
	RunE:    groupList,
}

func init() {
	groupCreateCmd.Flags().StringVar(&groupTitle, "title", "", "group title")
	groupCreateCmd.Flags().StringVar(&groupSlug, "slug", "", "URL slug, letters, digits, - and _")
	groupCreateCmd.Flags().StringVar(&groupDescription, "description", "", "group description")
	_ = groupCreateCmd.MarkFlagRequired("title")
	_ = groupCreateCmd.MarkFlagRequired("slug")

	groupCmd.AddCommand(groupCreateCmd, groupListCmd)
	RootCmd.AddCommand(groupCmd)
}

type groupForm struct {
	Title       string `validate:"notblank,max=200"`
	Slug        string `validate:"notblank,max=50"`
	Description string
}

type groupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error
}

func createGroup(ctx context.Context, st groupStore, form groupForm) (*models.Group, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Slug = strings.TrimSpace(form.Slug)

	errs := forms.Check(form, map[string]string{"Title": "title", "Slug": "slug"}, nil)
	if !errs.Has("slug") && !slugPattern.MatchString(form.Slug) {
		errs.Add("slug", "Enter a valid slug consisting of letters, numbers, underscores or hyphens.")
	}
	if errs.Any() {
		var msgs []string
		for field, m := range errs {
			msgs = append(msgs, field+": "+strings.Join(m, " "))
		}
		return nil, errors.New(strings.Join(msgs, "; "))
	}

	group := &models.Group{Title: form.Title, Slug: form.Slug, Description: form.Description}
	if err := st.CreateGroup(ctx, group); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errors.Errorf("a group with slug %q already exists", form.Slug)
		}
		return nil, err
	}
	return group, nil
}

func groupCreate(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := createGroup(cmd.Context(), a.store, groupForm{
		Title:       groupTitle,
		Slug:        groupSlug,
		Description: groupDescription,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Created group %s (id %d)\n", color.New(color.Bold).Sprint(group.Slug), group.ID)
	return nil
}

func groupList(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	groups, err := a.store.ListGroups(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "🤷‍♂️ No groups")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Slug", "Title", "Description"})
	table.SetAutoWrapText(false)
	for _, g := range groups {
		table.Append([]string{strconv.FormatUint(uint64(g.ID), 10), g.Slug, g.Title, g.Description})
	}
	table.Render()
	return nil
}
