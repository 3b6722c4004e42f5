package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"wsldash/internal/wsl"
)

type adminRequest struct {
	Action   string `json:"action"`
	Name     string `json:"name,omitempty"`
	Path     string `json:"path,omitempty"`
	Archive  string `json:"archive,omitempty"`
	Location string `json:"location,omitempty"`
}

type adminResponse struct {
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	Busy    bool         `json:"busy"`
	Distros []distroView `json:"distros,omitempty"`
	Output  string       `json:"output,omitempty"`
	Info    *DistroInfo  `json:"info,omitempty"`
}

type distroView struct {
	Name     string `json:"name"`
	Status   string `json:"status,omitempty"`
	Version  string `json:"version,omitempty"`
	Default  bool   `json:"default,omitempty"`
	Friendly string `json:"friendly,omitempty"`
}

// AdminServer exposes the coordinator over a line-delimited JSON TCP
// endpoint: one request per line, one response per line.
type AdminServer struct {
	dash        *Dashboard
	clientCount atomic.Int64
}

func NewAdminServer(dash *Dashboard) *AdminServer {
	return &AdminServer{dash: dash}
}

// ListenAndServe binds addr and serves until the context ends.
func (s *AdminServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return fmt.Errorf("admin listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context ends.
func (s *AdminServer) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Msg("admin endpoint listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *AdminServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	log.Info().Str("remote", remote).Int64("active", active).Msg("admin client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		log.Info().Str("remote", remote).Int64("active", remaining).Msg("admin client disconnected")
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Str("remote", remote).Msg("admin read failed")
			}
			return
		}
		var req adminRequest
		if err := json.Unmarshal(line, &req); err != nil {
			_ = writeAdminResponse(conn, adminResponse{Error: err.Error()})
			continue
		}
		resp := s.handleRequest(ctx, req)
		if err := writeAdminResponse(conn, resp); err != nil {
			log.Warn().Err(err).Str("remote", remote).Msg("admin write failed")
			return
		}
	}
}

func (s *AdminServer) handleRequest(ctx context.Context, req adminRequest) adminResponse {
	action := strings.TrimSpace(req.Action)
	name := strings.TrimSpace(req.Name)

	needsName := map[string]bool{
		"start": true, "stop": true, "restart": true,
		"delete": true, "export": true, "import": true, "move": true, "info": true,
	}
	if needsName[action] && name == "" {
		return adminResponse{Error: "name required", Busy: s.dash.Busy()}
	}

	switch action {
	case "status":
		return adminResponse{OK: true, Busy: s.dash.Busy(), Distros: viewDistros(s.dash.Distros())}
	case "refresh":
		return s.resultResponse(s.dash.Refresh(ctx))
	case "start":
		return s.resultResponse(s.dash.Start(ctx, name))
	case "stop":
		return s.resultResponse(s.dash.Stop(ctx, name))
	case "restart":
		return s.resultResponse(s.dash.Restart(ctx, name))
	case "shutdown":
		return s.resultResponse(s.dash.ShutdownAll(ctx))
	case "delete":
		return s.resultResponse(s.dash.Delete(ctx, name))
	case "export":
		if req.Archive == "" {
			return adminResponse{Error: "archive required", Busy: s.dash.Busy()}
		}
		return s.resultResponse(s.dash.Export(ctx, name, req.Archive, nil))
	case "import":
		if req.Archive == "" || req.Location == "" {
			return adminResponse{Error: "archive and location required", Busy: s.dash.Busy()}
		}
		return s.resultResponse(s.dash.Import(ctx, name, req.Location, req.Archive))
	case "move":
		if req.Path == "" {
			return adminResponse{Error: "path required", Busy: s.dash.Busy()}
		}
		return s.resultResponse(s.dash.Move(ctx, name, req.Path))
	case "info":
		info := s.dash.Info(ctx, name)
		return adminResponse{OK: true, Busy: s.dash.Busy(), Info: &info}
	case "available":
		res := s.dash.ListAvailable(ctx)
		if !res.Success {
			return adminResponse{Error: res.Error, Busy: s.dash.Busy()}
		}
		views := make([]distroView, 0, len(res.Data))
		for _, a := range res.Data {
			views = append(views, distroView{Name: a.Name, Friendly: a.FriendlyName})
		}
		return adminResponse{OK: true, Busy: s.dash.Busy(), Distros: views}
	default:
		return adminResponse{Error: fmt.Sprintf("unknown action: %s", req.Action), Busy: s.dash.Busy()}
	}
}

func (s *AdminServer) resultResponse(res wsl.Result[string]) adminResponse {
	return adminResponse{
		OK:      res.Success,
		Error:   res.Error,
		Busy:    s.dash.Busy(),
		Output:  res.Output,
		Distros: viewDistros(s.dash.Distros()),
	}
}

func viewDistros(distros []wsl.Distro) []distroView {
	views := make([]distroView, 0, len(distros))
	for _, d := range distros {
		views = append(views, distroView{
			Name:    d.Name,
			Status:  d.Status.String(),
			Version: d.Version.String(),
			Default: d.Default,
		})
	}
	return views
}

func writeAdminResponse(conn net.Conn, resp adminResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = conn.Write(payload)
	return err
}
