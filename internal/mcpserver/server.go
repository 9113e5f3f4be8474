// Package mcpserver exposes the note store to LLM clients as MCP tools over
// the stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/noteservice"
)

// ContractURI is the resource holding the note format contract.
const ContractURI = "notter://note-format"

// Server wraps the MCP server with notter tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates an MCP server with every tool registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notter",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	idParam := mcp.WithString("id", mcp.Description("Note id as returned by list_notes or search_notes"))
	titleParam := mcp.WithString("title", mcp.Description("Note title, used when id is empty"))

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search over note titles, tags, and content. Title hits rank first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("field", mcp.Description("Optional single field: title, tags, content, or type")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 100)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by id or title."),
		idParam, titleParam,
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with id, title, tags, and timestamps."),
		mcp.WithString("sort", mcp.Description("title_asc, title_desc, created_newest, created_oldest, modified_newest (default), modified_oldest")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Read the format contract first via get_note_contract "+
			"or the "+ContractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title; also names the file")),
		mcp.WithString("content", mcp.Description("Note body")),
		mcp.WithString("type", mcp.Description("Markdown (default) or PlainText")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of a note. Links to a changed title are rewritten."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
		mcp.WithString("checksum", mcp.Description("Checksum from read_note; the update fails if the note changed since")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename the note file within its directory. Returns the new id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New file name without extension")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the note with [[Title]]."),
		idParam, titleParam,
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_subnotes",
		mcp.WithDescription("List the Zettelkasten children of a note (1 -> 1a, 1a1, 1b ...) with their depth."),
		idParam, titleParam,
	), s.getSubnotes)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Rebuild the search index from the notes directory."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. Call this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Note Format Contract",
			mcp.WithResourceDescription("How titles, tags, links, and hierarchy prefixes are written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// noteResult renders a mutated note. An index failure is appended as a
// warning; the change itself succeeded.
func noteResult(verb string, n *models.Note, err error) *mcp.CallToolResult {
	if err != nil && (n == nil || !errors.Is(err, apperr.ErrIndex)) {
		return mcp.NewToolResultError(err.Error())
	}
	text := fmt.Sprintf("%s: %s\nid: %s\nchecksum: %s", verb, n.Path, n.ID, n.Checksum)
	if err != nil {
		text += "\nwarning: search index not updated: " + err.Error()
	}
	return mcp.NewToolResultText(text)
}

// resolveID takes the id argument, or looks the title argument up.
func (s *Server) resolveID(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	if id := req.GetString("id", ""); id != "" {
		return id, nil
	}
	title := req.GetString("title", "")
	if title == "" {
		return "", errors.New("either id or title is required")
	}
	return s.svc.FindByTitle(ctx, title)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 0)
	var res []models.SearchResult
	if field := req.GetString("field", ""); field != "" {
		res, err = s.svc.SearchField(ctx, field, query, limit)
	} else {
		res, err = s.svc.Search(ctx, query, limit)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(res) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	header := fmt.Sprintf("id: %s\npath: %s\nchecksum: %s\ntags: %s\n---\n",
		n.ID, n.Path, n.Checksum, strings.Join(n.Tags, ", "))
	return mcp.NewToolResultText(header + n.Content), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	order, err := models.ParseSortOption(req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.svc.ListNotes(ctx, order)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := noteservice.CreateInput{Title: title, Content: req.GetString("content", "")}
	if t := req.GetString("type", ""); t != "" {
		if in.Type, err = models.ParseNoteType(t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	n, err := s.svc.CreateNote(ctx, in)
	return noteResult("created", n, err), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.UpdateNote(ctx, id, content, req.GetString("checksum", ""))
	return noteResult("updated", n, err), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.RenameNote(ctx, id, name)
	return noteResult("renamed", n, err), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(list), nil
}

func (s *Server) getSubnotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.svc.Subnotes(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no subnotes found"), nil
	}
	return jsonResult(list), nil
}

func (s *Server) rebuildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.RebuildIndex(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.svc.IndexStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rebuilt: %d documents", st.Documents)), nil
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
