package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/history"
	"github.com/imkarma/squad/internal/store"
)

// recordTaskEvent appends to the audit trail. History is best-effort
// and never fails the command.
func recordTaskEvent(t *store.Task, eventType, content string) {
	rec := openRecorder(newLogger())
	if rec == nil {
		return
	}
	defer rec.Close()
	rec.Record(history.Event{
		TaskID:   t.ID,
		SprintID: t.SprintID,
		Agent:    t.Executor,
		Type:     eventType,
		Content:  content,
	})
}

var (
	taskTitle       string
	taskDescription string
	taskExecutor    string
	taskSprint      int64
	taskProject     string
	taskDepends     []int64
	taskFinalize    bool

	listStatus   string
	listSprint   int64
	listExecutor string
	listType     string

	bugRelated int64
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create or manage tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [id] [status]",
	Short: "Change a task's status",
	Long:  "Moves a task to pending, in_progress, in_review, done or cancelled.\nDone and cancelled tasks are frozen and reject further status changes.",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskResultCmd = &cobra.Command{
	Use:   "result [id] [text]",
	Short: "Set a task's result text",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskResult,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update task fields",
	Long:  "Updates descriptive fields. Status and result have their own commands\nand are rejected here.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var bugCmd = &cobra.Command{
	Use:   "bug [title]",
	Short: "Report a bug",
	Long:  "Creates a bug. Bugs number from their own counter and may point at the task that introduced them.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBugCreate,
}

func init() {
	for _, c := range []*cobra.Command{taskCreateCmd, bugCmd} {
		c.Flags().StringVarP(&taskDescription, "desc", "d", "", "Description")
		c.Flags().StringVarP(&taskExecutor, "executor", "e", "", "Agent responsible for execution")
		c.Flags().Int64VarP(&taskSprint, "sprint", "s", 0, "Sprint ID")
		c.Flags().StringVar(&taskProject, "project", "", "Project directory (defaults to the active project at dispatch)")
	}
	taskCreateCmd.Flags().Int64SliceVar(&taskDepends, "depends", nil, "IDs of tasks this one builds on")
	taskCreateCmd.Flags().BoolVar(&taskFinalize, "finalize", false, "Mark as the sprint's finalize task")
	bugCmd.Flags().Int64Var(&bugRelated, "related", 0, "Task that introduced the bug")

	taskListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	taskListCmd.Flags().Int64Var(&listSprint, "sprint", 0, "Filter by sprint")
	taskListCmd.Flags().StringVar(&listExecutor, "executor", "", "Filter by executor")
	taskListCmd.Flags().StringVar(&listType, "type", "", "Filter by kind: task or bug")

	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "Title")
	taskUpdateCmd.Flags().StringVarP(&taskDescription, "desc", "d", "", "Description")
	taskUpdateCmd.Flags().StringVarP(&taskExecutor, "executor", "e", "", "Agent responsible for execution")
	taskUpdateCmd.Flags().Int64VarP(&taskSprint, "sprint", "s", 0, "Sprint ID")
	taskUpdateCmd.Flags().StringVar(&taskProject, "project", "", "Project directory")
	taskUpdateCmd.Flags().BoolVar(&taskFinalize, "finalize", false, "Mark as the sprint's finalize task")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskResultCmd)
	taskCmd.AddCommand(taskUpdateCmd)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}

	task, err := s.CreateTask(store.CreateTaskRequest{
		Title:       strings.Join(args, " "),
		Description: taskDescription,
		Executor:    taskExecutor,
		SprintID:    taskSprint,
		DependsOn:   taskDepends,
		ProjectPath: taskProject,
		IsFinalize:  taskFinalize,
	})
	if err != nil {
		return err
	}

	recordTaskEvent(task, history.EventCreated, task.Title)
	fmt.Printf("Created task #%d: %s\n", task.ID, task.Title)
	return nil
}

func runBugCreate(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}

	bug, err := s.CreateBug(store.CreateTaskRequest{
		Title:       strings.Join(args, " "),
		Description: taskDescription,
		Executor:    taskExecutor,
		SprintID:    taskSprint,
		RelatedTask: bugRelated,
		ProjectPath: taskProject,
	})
	if err != nil {
		return err
	}

	recordTaskEvent(bug, history.EventCreated, bug.Title)
	fmt.Printf("Created bug #%d: %s\n", bug.ID, bug.Title)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}

	tasks, err := s.ListTasks(store.TaskFilter{
		Status:   store.TaskStatus(listStatus),
		SprintID: listSprint,
		Executor: listExecutor,
		TaskType: store.TaskType(listType),
	})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println(dimStyle.Render("No tasks."))
		return nil
	}
	for _, t := range tasks {
		fmt.Println(renderTaskLine(t))
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	t, err := s.GetTask(id)
	if err != nil {
		return err
	}

	kind := "Task"
	if t.TaskType == store.TypeBug {
		kind = "Bug"
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s #%d: %s", kind, t.ID, t.Title)))
	fmt.Printf("Status:   %s\n", renderStatus(t.Status))
	if t.Executor != "" {
		fmt.Printf("Executor: %s\n", t.Executor)
	}
	if t.SprintID != 0 {
		fmt.Printf("Sprint:   #%d\n", t.SprintID)
	}
	if t.ProjectPath != "" {
		fmt.Printf("Project:  %s\n", t.ProjectPath)
	}
	if len(t.DependsOn) > 0 {
		fmt.Printf("Depends:  %v\n", t.DependsOn)
	}
	if t.RelatedTask != 0 {
		fmt.Printf("Related:  #%d\n", t.RelatedTask)
	}
	if t.IsFinalize {
		fmt.Println(warnStyle.Render("Finalize task: excluded from release readiness"))
	}
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
	if t.Result != "" {
		fmt.Printf("\nResult: %s\n", t.Result)
	}
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	t, err := s.UpdateTaskStatus(id, store.TaskStatus(args[1]))
	if err != nil {
		return err
	}
	recordTaskEvent(t, history.EventStatusChanged, string(t.Status))
	fmt.Printf("Task #%d is now %s\n", t.ID, renderStatus(t.Status))
	return nil
}

func runTaskResult(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	t, err := s.SetTaskResult(id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("Recorded result for task #%d\n", t.ID)
	return nil
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	fields := map[string]any{}
	if cmd.Flags().Changed("title") {
		fields["title"] = taskTitle
	}
	if cmd.Flags().Changed("desc") {
		fields["description"] = taskDescription
	}
	if cmd.Flags().Changed("executor") {
		fields["executor"] = taskExecutor
	}
	if cmd.Flags().Changed("sprint") {
		fields["sprint_id"] = taskSprint
	}
	if cmd.Flags().Changed("project") {
		fields["project_path"] = taskProject
	}
	if cmd.Flags().Changed("finalize") {
		fields["is_finalize"] = taskFinalize
	}
	if len(fields) == 0 {
		return fmt.Errorf("nothing to update")
	}

	t, err := s.UpdateTaskFields(id, fields)
	if err != nil {
		return err
	}
	fmt.Printf("Updated task #%d\n", t.ID)
	return nil
}
