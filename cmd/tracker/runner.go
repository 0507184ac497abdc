package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

var errNoToken = errors.New("no session token: run `tracker login` first")

// APIError est une réponse d'erreur du serveur.
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("%s (%s, %d)", e.Msg, e.Code, e.Status)
}

type Runner struct {
	client    *http.Client
	baseURL   string
	token     string
	tokenFile string
	rawJSON   bool
	logger    *log.Logger
	output    io.Writer
}

type RunnerOpts struct {
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = newLogger()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{client: opts.HTTPClient, logger: opts.Logger, output: opts.Output}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tracker-token"
	}
	return filepath.Join(dir, "anime-tracker", "token")
}

// configure lit les options globales avant chaque commande.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.baseURL = strings.TrimRight(cmd.String("server"), "/")
	r.token = cmd.String("token")
	r.tokenFile = cmd.String("token-file")
	r.rawJSON = cmd.Bool("json")
	if t := cmd.Duration("timeout"); t > 0 {
		r.client.Timeout = t
	}
	if cmd.Bool("debug") {
		r.logger.SetLevel(log.DebugLevel)
	}
	return ctx, nil
}

func (r *Runner) sessionToken() (string, error) {
	if r.token != "" {
		return r.token, nil
	}
	if r.tokenFile == "" {
		return "", errNoToken
	}
	b, err := os.ReadFile(r.tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errNoToken
		}
		return "", err
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", errNoToken
	}
	return tok, nil
}

func (r *Runner) saveToken(token string) error {
	if r.tokenFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.tokenFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(r.tokenFile, []byte(token+"\n"), 0o600)
}

type request struct {
	method      string
	path        string
	auth        bool
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, auth bool, v any) (request, error) {
	req := request{method: method, path: path, auth: auth}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return request{}, err
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return req, nil
}

// send exécute la requête et renvoie le corps brut d'une réponse 2xx.
func (r *Runner) send(ctx context.Context, req request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, r.baseURL+req.path, req.body)
	if err != nil {
		return nil, err
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.auth {
		tok, err := r.sessionToken()
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	r.logger.Debug("request", "method", req.method, "path", req.path)
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var body httpjson.ErrorBody
		if json.Unmarshal(b, &body) == nil && body.Error != "" {
			return nil, &APIError{Status: resp.StatusCode, Code: body.Code, Msg: body.Error}
		}
		return nil, &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(b))}
	}
	return b, nil
}

func (r *Runner) call(ctx context.Context, method, path string, auth bool, in, out any) ([]byte, error) {
	req, err := jsonRequest(method, path, auth, in)
	if err != nil {
		return nil, err
	}
	b, err := r.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if out != nil && len(b) > 0 {
		if err := json.Unmarshal(b, out); err != nil {
			return b, fmt.Errorf("decode response: %w", err)
		}
	}
	return b, nil
}

func (r *Runner) writeJSON(b []byte) error {
	var pretty any
	if err := json.Unmarshal(b, &pretty); err != nil {
		_, err := r.output.Write(append(b, '\n'))
		return err
	}
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	b, err := r.call(ctx, http.MethodGet, "/api/v1/health", false, nil, nil)
	if err != nil {
		return err
	}
	return r.writeJSON(b)
}

func (r *Runner) ServerVersion(ctx context.Context, cmd *cli.Command) error {
	b, err := r.call(ctx, http.MethodGet, "/api/v1/version", false, nil, nil)
	if err != nil {
		return err
	}
	return r.writeJSON(b)
}

func (r *Runner) Signup(ctx context.Context, cmd *cli.Command) error {
	var res app.SignUpResult
	b, err := r.call(ctx, http.MethodPost, "/api/v1/auth/signup", false,
		map[string]string{"email": cmd.String("email"), "password": cmd.String("password")}, &res)
	if err != nil {
		return err
	}
	if res.PendingConfirmation {
		r.logger.Info("account created, check your inbox to confirm it")
	} else if res.Session != nil {
		if err := r.saveToken(res.Session.Token); err != nil {
			return err
		}
		r.logger.Info("signed in", "email", res.Session.Email)
	}
	if r.rawJSON {
		return r.writeJSON(b)
	}
	return nil
}

func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	var session domain.Session
	b, err := r.call(ctx, http.MethodPost, "/api/v1/auth/login", false,
		map[string]string{"email": cmd.String("email"), "password": cmd.String("password")}, &session)
	if err != nil {
		return err
	}
	if err := r.saveToken(session.Token); err != nil {
		return err
	}
	r.logger.Info("signed in", "email", session.Email, "expires", session.ExpiresAt)
	if r.rawJSON {
		return r.writeJSON(b)
	}
	return nil
}

func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.call(ctx, http.MethodPost, "/api/v1/auth/logout", true, nil, nil); err != nil {
		return err
	}
	if r.tokenFile != "" {
		_ = os.Remove(r.tokenFile)
	}
	r.logger.Info("signed out")
	return nil
}

func (r *Runner) ResetPassword(ctx context.Context, cmd *cli.Command) error {
	_, err := r.call(ctx, http.MethodPost, "/api/v1/auth/password/reset", false, map[string]string{"email": cmd.String("email")}, nil)
	if err != nil {
		return err
	}
	r.logger.Info("if the account exists, a reset link has been sent")
	return nil
}

func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	path := "/api/v1/library"
	q := url.Values{}
	if cmd.IsSet("status") {
		q.Set("status", cmd.String("status"))
	}
	if cmd.IsSet("query") {
		q.Set("q", cmd.String("query"))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var view app.LibraryView
	b, err := r.call(ctx, http.MethodGet, path, true, nil, &view)
	if err != nil {
		return err
	}
	if r.rawJSON {
		return r.writeJSON(b)
	}
	return r.printLibrary(view)
}

func (r *Runner) printLibrary(view app.LibraryView) error {
	fmt.Fprintf(r.output, "Filter: %s", view.State.Status)
	if view.State.Query != "" {
		fmt.Fprintf(r.output, "  Search: %q", view.State.Query)
	}
	fmt.Fprintf(r.output, "  (%d)\n", view.Count)

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	section := func(title string, cards []app.TitleCard) {
		fmt.Fprintf(tw, "\n%s\n", title)
		if len(cards) == 0 {
			fmt.Fprintln(tw, "  (none)")
			return
		}
		for _, c := range cards {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.ID, c.Name, c.Status, c.Summary)
		}
	}
	section("Currently Watching", view.Watching)
	section("Collection", view.Collection)
	return tw.Flush()
}

func (r *Runner) printTitle(t app.TitleDTO) {
	fmt.Fprintf(r.output, "%s  %s  [%s, %s]\n", t.ID, t.Name, t.Kind, t.Status)
	if t.Kind != domain.KindSeries {
		watched := "not watched"
		if t.Watched {
			watched = "watched"
		}
		fmt.Fprintf(r.output, "  %s\n", watched)
		return
	}
	current := ""
	if t.Progress != nil {
		current = t.Progress.CurrentSeasonID
	}
	for _, s := range t.Seasons {
		marker := " "
		if s.ID == current {
			marker = ">"
		}
		fmt.Fprintf(r.output, " %s S%d  %d/%d  (%s)\n", marker, s.Number, s.LastWatched, s.TotalEpisodes, s.ID)
	}
	if t.Progress != nil {
		fmt.Fprintf(r.output, "  %.1f%% watched (%d/%d)\n", t.Progress.OverallPercent, t.Progress.WatchedEpisodes, t.Progress.TotalEpisodes)
	}
}

func (r *Runner) titleResult(b []byte, t app.TitleDTO) error {
	if r.rawJSON {
		return r.writeJSON(b)
	}
	r.printTitle(t)
	return nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.StringArg(name))
	if v == "" {
		return "", fmt.Errorf("missing argument <%s>", name)
	}
	return v, nil
}

func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	var t app.TitleDTO
	b, err := r.call(ctx, http.MethodGet, "/api/v1/titles/"+id, true, nil, &t)
	if err != nil {
		return err
	}
	return r.titleResult(b, t)
}

// parseSeasonFlags lit "total[:vus]" ; les saisons sont numérotées dans l'ordre.
func parseSeasonFlags(values []string) []domain.SeasonRow {
	out := make([]domain.SeasonRow, 0, len(values))
	for i, v := range values {
		total, watched, _ := strings.Cut(v, ":")
		out = append(out, domain.SeasonRow{SeasonInput: domain.SeasonInput{
			Number:        domain.FormIntOf(i + 1),
			TotalEpisodes: domain.FormInt(strings.TrimSpace(total)),
			LastWatched:   domain.FormInt(strings.TrimSpace(watched)),
		}})
	}
	return out
}

func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	in := app.TitleInput{
		Name:    cmd.String("name"),
		Kind:    domain.Kind(cmd.String("kind")),
		Status:  cmd.String("status"),
		Watched: cmd.Bool("watched"),
		Seasons: parseSeasonFlags(cmd.StringSlice("season")),
	}
	if in.Kind == domain.KindSeries && len(in.Seasons) == 0 {
		in.Seasons = []domain.SeasonRow{{SeasonInput: domain.SeasonInput{Number: domain.FormIntOf(1)}}}
	}

	var req request
	var err error
	if poster := cmd.String("poster"); poster != "" {
		req, err = multipartTitleRequest(in, poster)
	} else {
		req, err = jsonRequest(http.MethodPost, "/api/v1/titles", true, in)
	}
	if err != nil {
		return err
	}
	b, err := r.send(ctx, req)
	if err != nil {
		return err
	}
	var t app.TitleDTO
	if err := json.Unmarshal(b, &t); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return r.titleResult(b, t)
}

func multipartTitleRequest(in app.TitleInput, posterPath string) (request, error) {
	data, err := os.ReadFile(posterPath)
	if err != nil {
		return request{}, err
	}
	meta, err := json.Marshal(in)
	if err != nil {
		return request{}, err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", string(meta)); err != nil {
		return request{}, err
	}
	fw, err := mw.CreateFormFile("poster", filepath.Base(posterPath))
	if err != nil {
		return request{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return request{}, err
	}
	if err := mw.Close(); err != nil {
		return request{}, err
	}
	return request{
		method:      http.MethodPost,
		path:        "/api/v1/titles",
		auth:        true,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, nil
}

func (r *Runner) Step(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	seasonID := cmd.String("season")
	if seasonID == "" {
		var t app.TitleDTO
		if _, err := r.call(ctx, http.MethodGet, "/api/v1/titles/"+id, true, nil, &t); err != nil {
			return err
		}
		if t.Progress == nil || t.Progress.CurrentSeasonID == "" {
			return fmt.Errorf("title %s has no season to step", id)
		}
		seasonID = t.Progress.CurrentSeasonID
	}
	action := "increment"
	if cmd.Bool("down") {
		action = "decrement"
	}
	var t app.TitleDTO
	b, err := r.call(ctx, http.MethodPost, "/api/v1/titles/"+id+"/seasons/"+seasonID+"/"+action, true, nil, &t)
	if err != nil {
		return err
	}
	return r.titleResult(b, t)
}

func (r *Runner) SeasonAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	total, err := requireArg(cmd, "total")
	if err != nil {
		return err
	}
	var t app.TitleDTO
	b, err := r.call(ctx, http.MethodPost, "/api/v1/titles/"+id+"/seasons", true, map[string]string{"totalEpisodes": total}, &t)
	if err != nil {
		return err
	}
	return r.titleResult(b, t)
}

func (r *Runner) Toggle(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	var t app.TitleDTO
	b, err := r.call(ctx, http.MethodPost, "/api/v1/titles/"+id+"/watched/toggle", true, nil, &t)
	if err != nil {
		return err
	}
	return r.titleResult(b, t)
}

func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	if _, err := r.call(ctx, http.MethodDelete, "/api/v1/titles/"+id, true, nil, nil); err != nil {
		return err
	}
	r.logger.Info("deleted", "id", id)
	return nil
}
