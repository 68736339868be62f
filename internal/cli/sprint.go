package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/git"
	"github.com/imkarma/squad/internal/sprint"
	"github.com/imkarma/squad/internal/store"
	"github.com/imkarma/squad/internal/version"
)

var (
	sprintDescription  string
	sprintCreatedBy    string
	sprintReady        bool
	sprintTitle        string
	sprintNote         string
	sprintDeleteBranch bool
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Create and manage sprints",
	Long:  "A sprint groups tasks under a dedicated git branch sprint/<id>,\ncreated from the primary branch at sprint creation.",
}

var sprintCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a sprint and provision its branch",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSprintCreate,
}

var sprintListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sprints",
	RunE:  runSprintList,
}

var sprintShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show sprint details and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintShow,
}

var sprintStatusCmd = &cobra.Command{
	Use:   "status [id] [status]",
	Short: "Change a sprint's status",
	Long:  "Moves a sprint to active, completed or released.",
	Args:  cobra.ExactArgs(2),
	RunE:  runSprintStatus,
}

var sprintUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update sprint fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintUpdate,
}

var sprintDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a sprint record",
	Long:  "Removes the sprint record. The git branch is left in place unless\n--branch explicitly asks for its local deletion too.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintDelete,
}

var sprintReadinessCmd = &cobra.Command{
	Use:   "readiness [id]",
	Short: "Report whether a sprint is ready to release",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintReadiness,
}

func init() {
	sprintCreateCmd.Flags().StringVarP(&sprintDescription, "desc", "d", "", "Description")
	sprintCreateCmd.Flags().StringVar(&sprintCreatedBy, "by", "", "Author")
	sprintCreateCmd.Flags().BoolVar(&sprintReady, "ready", false, "Mark ready to execute")

	sprintUpdateCmd.Flags().StringVar(&sprintTitle, "title", "", "Title")
	sprintUpdateCmd.Flags().StringVarP(&sprintDescription, "desc", "d", "", "Description")
	sprintUpdateCmd.Flags().BoolVar(&sprintReady, "ready", false, "Ready to execute")
	sprintUpdateCmd.Flags().StringVar(&sprintNote, "git-note", "", "Provisioning note")

	sprintDeleteCmd.Flags().BoolVar(&sprintDeleteBranch, "branch", false, "Also delete the local sprint branch")

	sprintCmd.AddCommand(sprintCreateCmd)
	sprintCmd.AddCommand(sprintListCmd)
	sprintCmd.AddCommand(sprintShowCmd)
	sprintCmd.AddCommand(sprintStatusCmd)
	sprintCmd.AddCommand(sprintUpdateCmd)
	sprintCmd.AddCommand(sprintDeleteCmd)
	sprintCmd.AddCommand(sprintReadinessCmd)
}

// sprintManager builds the lifecycle manager over the active project's
// repository.
func sprintManager() (*sprint.Manager, error) {
	s, err := mustStore()
	if err != nil {
		return nil, err
	}
	cfg, err := mustConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	repo := git.New(cfg.ActiveProject)
	return sprint.New(s, repo, version.NewGitCalculator(repo), openRecorder(logger), logger), nil
}

func runSprintCreate(cmd *cobra.Command, args []string) error {
	m, err := sprintManager()
	if err != nil {
		return err
	}

	title := args[0]
	for _, a := range args[1:] {
		title += " " + a
	}

	sp, err := m.Create(title, sprintDescription, sprintCreatedBy, sprintReady)
	if err != nil {
		return err
	}

	fmt.Printf("Created sprint #%d: %s on branch %s\n", sp.ID, sp.Title, sp.GitBranch)
	if sp.GitNote != "" {
		fmt.Println(warnStyle.Render("note: " + sp.GitNote))
	}
	return nil
}

func runSprintList(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}

	sprints, err := s.ListSprints()
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		fmt.Println(dimStyle.Render("No sprints."))
		return nil
	}
	for _, sp := range sprints {
		fmt.Println(renderSprintLine(sp))
	}
	return nil
}

func runSprintShow(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	sp, err := s.GetSprint(id)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Sprint #%d: %s", sp.ID, sp.Title)))
	fmt.Printf("Status: %s\n", sp.Status)
	if sp.GitBranch != "" {
		fmt.Printf("Branch: %s\n", sp.GitBranch)
	}
	if sp.GitNote != "" {
		fmt.Println(warnStyle.Render("Note:   " + sp.GitNote))
	}
	if sp.ReadyToExecute {
		fmt.Println(okStyle.Render("Ready to execute"))
	}
	if sp.Description != "" {
		fmt.Printf("\n%s\n", sp.Description)
	}

	tasks, err := s.ListTasks(store.TaskFilter{SprintID: sp.ID})
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		fmt.Println()
		for _, t := range tasks {
			fmt.Println(renderTaskLine(t))
		}
	}
	return nil
}

func runSprintStatus(cmd *cobra.Command, args []string) error {
	m, err := sprintManager()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	sp, err := m.UpdateStatus(id, store.SprintStatus(args[1]))
	if err != nil {
		return err
	}
	fmt.Printf("Sprint #%d is now %s\n", sp.ID, sp.Status)
	return nil
}

func runSprintUpdate(cmd *cobra.Command, args []string) error {
	m, err := sprintManager()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	fields := map[string]any{}
	if cmd.Flags().Changed("title") {
		fields["title"] = sprintTitle
	}
	if cmd.Flags().Changed("desc") {
		fields["description"] = sprintDescription
	}
	if cmd.Flags().Changed("ready") {
		fields["ready_to_execute"] = sprintReady
	}
	if cmd.Flags().Changed("git-note") {
		fields["git_note"] = sprintNote
	}
	if len(fields) == 0 {
		return fmt.Errorf("nothing to update")
	}

	sp, err := m.Update(id, fields)
	if err != nil {
		return err
	}
	fmt.Printf("Updated sprint #%d\n", sp.ID)
	return nil
}

func runSprintDelete(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	// Grab the branch name before the record disappears.
	branch := ""
	if sprintDeleteBranch {
		sp, err := s.GetSprint(id)
		if err != nil {
			return err
		}
		branch = sp.GitBranch
	}

	logger := newLogger()
	repo := git.New(cfg.ActiveProject)
	m := sprint.New(s, repo, version.NewGitCalculator(repo), openRecorder(logger), logger)
	if err := m.Delete(id); err != nil {
		return err
	}

	if branch == "" {
		fmt.Printf("Deleted sprint #%d (branch kept)\n", id)
		return nil
	}
	if err := repo.DeleteBranch(branch, false); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("record deleted, but branch %s remains: %v", branch, err)))
		return nil
	}
	fmt.Printf("Deleted sprint #%d and local branch %s\n", id, branch)
	return nil
}

func runSprintReadiness(cmd *cobra.Command, args []string) error {
	m, err := sprintManager()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	r, err := m.ReleaseReadiness(id)
	if err != nil {
		return err
	}

	if r.Ready {
		fmt.Println(okStyle.Render(fmt.Sprintf("Sprint #%d is ready to release as %s", id, r.NextVersion)))
		return nil
	}
	fmt.Println(warnStyle.Render(fmt.Sprintf("Sprint #%d is not ready: %d task(s) pending", id, len(r.PendingTasks))))
	for _, p := range r.PendingTasks {
		fmt.Printf("  #%-4d %-40.40s %s\n", p.ID, p.Title, renderStatus(p.Status))
	}
	return nil
}
