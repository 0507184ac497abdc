package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
)

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema map[string]any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

func jsonBody(schema map[string]any) map[string]any {
	return map[string]any{"required": true, "content": jsonContent(schema)}
}

func jsonResp(desc string, schema map[string]any) map[string]any {
	return map[string]any{"description": desc, "content": jsonContent(schema)}
}

var (
	errResp     = jsonResp("Error", ref("Error"))
	noContent   = map[string]any{"description": "No Content"}
	bearerOnly  = []any{map[string]any{"bearer": []any{}}}
	stringProp  = map[string]any{"type": "string"}
	integerProp = map[string]any{"type": "integer"}
	formIntProp = map[string]any{
		"description": "Entier, accepté aussi sous forme de chaîne.",
		"oneOf":       []any{map[string]any{"type": "integer"}, map[string]any{"type": "string"}},
	}
)

func op(summary string, secured bool, body map[string]any, responses map[string]any) map[string]any {
	o := map[string]any{"summary": summary, "responses": responses}
	if body != nil {
		o["requestBody"] = body
	}
	if secured {
		o["security"] = bearerOnly
	}
	return o
}

func openAPISchemas() map[string]any {
	object := func(props map[string]any, required ...any) map[string]any {
		o := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			o["required"] = required
		}
		return o
	}
	return map[string]any{
		"Error": object(map[string]any{"error": stringProp, "code": map[string]any{
			"type": "string",
			"enum": []any{"validation", "not_found", "conflict", "busy", "unauthenticated", "store_failure", "rate_limited"},
		}}, "error"),
		"Credentials": object(map[string]any{"email": stringProp, "password": stringProp}, "email", "password"),
		"Session": object(map[string]any{
			"token":     stringProp,
			"userId":    stringProp,
			"email":     stringProp,
			"createdAt": map[string]any{"type": "string", "format": "date-time"},
			"expiresAt": map[string]any{"type": "string", "format": "date-time"},
		}),
		"SignUpResult": object(map[string]any{"session": ref("Session"), "pendingConfirmation": map[string]any{"type": "boolean"}}),
		"SeasonInput":  object(map[string]any{"number": formIntProp, "totalEpisodes": formIntProp, "lastWatched": formIntProp}),
		"TitleInput": object(map[string]any{
			"name":    stringProp,
			"kind":    map[string]any{"type": "string", "enum": []any{"Series", "Movie"}},
			"status":  stringProp,
			"watched": map[string]any{"type": "boolean"},
			"seasons": map[string]any{"type": "array", "items": ref("SeasonRow")},
		}, "name", "kind", "status"),
		"Season": object(map[string]any{"id": stringProp, "number": integerProp, "totalEpisodes": integerProp, "lastWatched": integerProp}),
		"Progress": object(map[string]any{
			"totalEpisodes":        integerProp,
			"watchedEpisodes":      integerProp,
			"overallPercent":       map[string]any{"type": "number"},
			"currentSeason":        integerProp,
			"currentSeasonId":      stringProp,
			"currentSeasonTotal":   integerProp,
			"currentEpisode":       integerProp,
			"overallEpisodeNumber": integerProp,
			"isCompleted":          map[string]any{"type": "boolean"},
		}),
		"Title": object(map[string]any{
			"id":        stringProp,
			"name":      stringProp,
			"kind":      stringProp,
			"status":    stringProp,
			"posterUrl": stringProp,
			"watched":   map[string]any{"type": "boolean"},
			"seasons":   map[string]any{"type": "array", "items": ref("Season")},
			"progress":  ref("Progress"),
			"createdAt": map[string]any{"type": "string", "format": "date-time"},
			"updatedAt": map[string]any{"type": "string", "format": "date-time"},
		}),
		"TitleCard": map[string]any{"allOf": []any{ref("Title"), object(map[string]any{"poster": stringProp, "summary": stringProp})}},
		"LibraryState": object(map[string]any{"status": stringProp, "query": stringProp}),
		"LibraryView": object(map[string]any{
			"state":      ref("LibraryState"),
			"count":      integerProp,
			"watching":   map[string]any{"type": "array", "items": ref("TitleCard")},
			"collection": map[string]any{"type": "array", "items": ref("TitleCard")},
		}),
		"SeasonRow": map[string]any{"allOf": []any{ref("SeasonInput"), object(map[string]any{"key": stringProp, "seasonId": stringProp})}},
		"FormRows":  object(map[string]any{"rows": map[string]any{"type": "array", "items": ref("SeasonRow")}, "remove": stringProp}),
	}
}

func openAPIPaths() map[string]any {
	titleOK := jsonResp("OK", ref("Title"))
	sessionOK := jsonResp("OK", ref("Session"))
	tokenBody := jsonBody(map[string]any{"type": "object", "properties": map[string]any{"token": stringProp, "password": stringProp}})
	titleBody := map[string]any{
		"required": true,
		"content": map[string]any{
			"application/json": map[string]any{"schema": ref("TitleInput")},
			"multipart/form-data": map[string]any{"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":  map[string]any{"type": "string", "description": "TitleInput encodé en JSON"},
					"poster": map[string]any{"type": "string", "format": "binary"},
				},
			}},
		},
	}

	return map[string]any{
		"/api/v1/health":       map[string]any{"get": op("Liveness", false, nil, map[string]any{"200": jsonResp("OK", map[string]any{"type": "object"})})},
		"/api/v1/version":      map[string]any{"get": op("Build info", false, nil, map[string]any{"200": jsonResp("OK", map[string]any{"type": "object"})})},
		"/api/v1/openapi.json": map[string]any{"get": op("This document", false, nil, map[string]any{"200": jsonResp("OK", map[string]any{"type": "object"})})},
		"/api/v1/events": map[string]any{"get": op("Server-sent events for the current user", true, nil, map[string]any{
			"200": map[string]any{"description": "text/event-stream"},
			"401": errResp,
		})},

		"/api/v1/auth/signup": map[string]any{"post": op("Create an account", false, jsonBody(ref("Credentials")), map[string]any{
			"201": jsonResp("Signed in", ref("SignUpResult")), "202": jsonResp("Confirmation pending", ref("SignUpResult")),
			"400": errResp, "409": errResp, "429": errResp,
		})},
		"/api/v1/auth/login":   map[string]any{"post": op("Sign in", false, jsonBody(ref("Credentials")), map[string]any{"200": sessionOK, "401": errResp, "429": errResp})},
		"/api/v1/auth/logout":  map[string]any{"post": op("Sign out", true, nil, map[string]any{"204": noContent, "401": errResp})},
		"/api/v1/auth/session": map[string]any{"get": op("Current session", true, nil, map[string]any{"200": sessionOK, "401": errResp})},
		"/api/v1/auth/confirm": map[string]any{"post": op("Confirm an email address", false, tokenBody, map[string]any{"200": sessionOK, "401": errResp})},
		"/api/v1/auth/password/reset": map[string]any{"post": op("Send a password reset link", false, jsonBody(map[string]any{
			"type": "object", "properties": map[string]any{"email": stringProp, "redirectUrl": stringProp},
		}), map[string]any{"202": jsonResp("Accepted", map[string]any{"type": "object"}), "400": errResp})},
		"/api/v1/auth/password/reset/confirm": map[string]any{"post": op("Set a new password from a reset token", false, tokenBody, map[string]any{"204": noContent, "400": errResp, "401": errResp})},
		"/api/v1/auth/password": map[string]any{"put": op("Change password", true, jsonBody(map[string]any{
			"type": "object", "properties": map[string]any{"password": stringProp},
		}), map[string]any{"204": noContent, "400": errResp, "401": errResp})},

		"/api/v1/titles": map[string]any{
			"get":  op("List titles, newest first", true, nil, map[string]any{"200": jsonResp("OK", map[string]any{"type": "array", "items": ref("Title")}), "401": errResp}),
			"post": op("Create a title", true, titleBody, map[string]any{"201": titleOK, "400": errResp, "409": errResp, "500": errResp}),
		},
		"/api/v1/titles/{id}": map[string]any{
			"get":    op("Get a title", true, nil, map[string]any{"200": titleOK, "404": errResp}),
			"put":    op("Replace a title and all its seasons", true, titleBody, map[string]any{"200": titleOK, "400": errResp, "404": errResp, "409": errResp}),
			"delete": op("Delete a title and its seasons", true, nil, map[string]any{"204": noContent, "404": errResp, "409": errResp}),
		},
		"/api/v1/titles/{id}/form": map[string]any{"get": op("Edit-form rows", true, nil, map[string]any{"200": jsonResp("OK", ref("FormRows")), "404": errResp})},
		"/api/v1/titles/form/rows": map[string]any{"post": op("Add or remove an edit-form row", true, jsonBody(ref("FormRows")), map[string]any{"200": jsonResp("OK", ref("FormRows")), "400": errResp})},
		"/api/v1/titles/{id}/watched/toggle": map[string]any{"post": op("Toggle a movie's watched flag", true, nil, map[string]any{"200": titleOK, "400": errResp, "404": errResp, "409": errResp})},
		"/api/v1/titles/{id}/seasons": map[string]any{"post": op("Append the next season", true, jsonBody(map[string]any{
			"type": "object", "properties": map[string]any{"totalEpisodes": formIntProp},
		}), map[string]any{"201": titleOK, "400": errResp, "404": errResp, "409": errResp})},
		"/api/v1/titles/{id}/seasons/{seasonId}/increment": map[string]any{"post": op("Watch one more episode", true, nil, map[string]any{"200": titleOK, "404": errResp, "409": errResp})},
		"/api/v1/titles/{id}/seasons/{seasonId}/decrement": map[string]any{"post": op("Unwatch one episode", true, nil, map[string]any{"200": titleOK, "404": errResp, "409": errResp})},

		"/api/v1/library": map[string]any{"get": op("Library view; status and q update the stored state", true, nil, map[string]any{"200": jsonResp("OK", ref("LibraryView")), "401": errResp})},
		"/api/v1/library/state": map[string]any{
			"get": op("Stored filter and search", true, nil, map[string]any{"200": jsonResp("OK", ref("LibraryState"))}),
			"put": op("Replace stored filter and search", true, jsonBody(ref("LibraryState")), map[string]any{"200": jsonResp("OK", ref("LibraryState")), "400": errResp}),
		},
		"/api/v1/statuses": map[string]any{"get": op("Suggested statuses", true, nil, map[string]any{"200": jsonResp("OK", map[string]any{"type": "array", "items": stringProp})})},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Anime Tracker API",
			"version": "v1",
		},
		"components": map[string]any{
			"schemas": openAPISchemas(),
			"securitySchemes": map[string]any{
				"bearer": map[string]any{"type": "http", "scheme": "bearer"},
			},
		},
		"paths": openAPIPaths(),
	}
	httpjson.Write(w, http.StatusOK, doc)
}
