package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"google.golang.org/api/idtoken"

	"seating/solver"
)

//go:embed schema.sql
var schema string

var constraintKinds = []string{"must_with", "must_separate"}

func main() {
	for _, key := range []string{"PGCONN", "CLIENT_ID", "CLIENT_SECRET", "ADMINS"} {
		if os.Getenv(key) == "" {
			log.Fatalf("%s environment variable is required", key)
		}
	}

	db, err := sql.Open("postgres", os.Getenv("PGCONN"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Println("connected to database")

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	http.HandleFunc("POST /auth/google/callback", handleGoogleCallback)
	http.HandleFunc("GET /api/admin/check", handleAdminCheck)
	http.HandleFunc("GET /api/events", handleListEvents(db))
	http.HandleFunc("POST /api/events", handleCreateEvent(db))
	http.HandleFunc("DELETE /api/events/{eventID}", handleDeleteEvent(db))
	http.HandleFunc("POST /api/events/{eventID}/admins", handleAddEventAdmin(db))
	http.HandleFunc("DELETE /api/events/{eventID}/admins/{adminID}", handleRemoveEventAdmin(db))
	http.HandleFunc("GET /api/events/{eventID}/me", handleEventMe(db))
	http.HandleFunc("GET /api/events/{eventID}", handleGetEvent(db))
	http.HandleFunc("PATCH /api/events/{eventID}", handleUpdateEvent(db))
	http.HandleFunc("GET /api/events/{eventID}/guests", handleListGuests(db))
	http.HandleFunc("POST /api/events/{eventID}/guests", handleCreateGuest(db))
	http.HandleFunc("DELETE /api/events/{eventID}/guests/{guestID}", handleDeleteGuest(db))
	http.HandleFunc("GET /api/events/{eventID}/tables", handleListTables(db))
	http.HandleFunc("POST /api/events/{eventID}/tables", handleCreateTable(db))
	http.HandleFunc("DELETE /api/events/{eventID}/tables/{tableID}", handleDeleteTable(db))
	http.HandleFunc("GET /api/events/{eventID}/constraints", handleListConstraints(db))
	http.HandleFunc("POST /api/events/{eventID}/constraints", handleCreateConstraint(db))
	http.HandleFunc("DELETE /api/events/{eventID}/constraints/{constraintID}", handleDeleteConstraint(db))
	http.HandleFunc("GET /api/events/{eventID}/relationships", handleListRelationships(db))
	http.HandleFunc("POST /api/events/{eventID}/relationships", handleUpsertRelationship(db))
	http.HandleFunc("DELETE /api/events/{eventID}/relationships/{relationshipID}", handleDeleteRelationship(db))
	http.HandleFunc("POST /api/events/{eventID}/solve", handleSolve(db))
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	log.Println("listening on :8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}

func handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := idtoken.Validate(context.Background(), credential, os.Getenv("CLIENT_ID"))
	if err != nil {
		log.Println("failed to validate token:", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	email := payload.Claims["email"].(string)

	profile := map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   signEmail(email),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func signEmail(email string) string {
	h := hmac.New(sha256.New, []byte(os.Getenv("CLIENT_SECRET")))
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if signEmail(email) != token {
		return "", false
	}
	return email, true
}

func isAdmin(email string) bool {
	return slices.ContainsFunc(strings.Split(os.Getenv("ADMINS"), ","), func(a string) bool {
		return strings.TrimSpace(a) == email
	})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	if !isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

func isEventAdmin(db *sql.DB, email string, eventID int64) bool {
	var exists bool
	db.QueryRow("SELECT EXISTS(SELECT 1 FROM event_admins WHERE event_id = $1 AND email = $2)", eventID, email).Scan(&exists)
	return exists
}

func requireEventAdmin(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, false
	}
	eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event ID", http.StatusBadRequest)
		return "", 0, false
	}
	if !isAdmin(email) && !isEventAdmin(db, email, eventID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", 0, false
	}
	return email, eventID, true
}

func eventRole(db *sql.DB, email string, eventID int64) (string, []int64) {
	if isAdmin(email) || isEventAdmin(db, email, eventID) {
		return "admin", nil
	}
	var guestIDs []int64
	rows, _ := db.Query("SELECT id FROM guests WHERE event_id = $1 AND email = $2", eventID, email)
	if rows != nil {
		defer rows.Close()
		for rows.Next() {
			var id int64
			rows.Scan(&id)
			guestIDs = append(guestIDs, id)
		}
	}
	if len(guestIDs) > 0 {
		return "guest", guestIDs
	}
	return "", nil
}

func requireEventMember(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, int64, string, []int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, "", nil, false
	}
	eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event ID", http.StatusBadRequest)
		return "", 0, "", nil, false
	}
	role, guestIDs := eventRole(db, email, eventID)
	if role == "" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", 0, "", nil, false
	}
	return email, eventID, role, guestIDs, true
}

func handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"admin": isAdmin(email)})
}

func handleListEvents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		rows, err := db.Query(`
			SELECT e.id, e.name, COALESCE(
				json_agg(json_build_object('id', ea.id, 'email', ea.email)) FILTER (WHERE ea.id IS NOT NULL),
				'[]'
			)
			FROM events e
			LEFT JOIN event_admins ea ON ea.event_id = e.id
			GROUP BY e.id, e.name
			ORDER BY e.id`)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type eventAdmin struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		}
		type event struct {
			ID     int64        `json:"id"`
			Name   string       `json:"name"`
			Admins []eventAdmin `json:"admins"`
		}

		var events []event
		for rows.Next() {
			var e event
			var adminsJSON string
			if err := rows.Scan(&e.ID, &e.Name, &adminsJSON); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			json.Unmarshal([]byte(adminsJSON), &e.Admins)
			events = append(events, e)
		}
		if events == nil {
			events = []event{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}
}

func handleCreateEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow("INSERT INTO events (name) VALUES ($1) RETURNING id", body.Name).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "name": body.Name})
	}
}

func handleDeleteEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid event ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM events WHERE id = $1", eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddEventAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid event ID", http.StatusBadRequest)
			return
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
			http.Error(w, "email is required", http.StatusBadRequest)
			return
		}
		var id int64
		err = db.QueryRow("INSERT INTO event_admins (event_id, email) VALUES ($1, $2) RETURNING id", eventID, body.Email).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "email": body.Email})
	}
}

func handleRemoveEventAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		adminID, err := strconv.ParseInt(r.PathValue("adminID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid admin ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM event_admins WHERE id = $1", adminID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "event admin not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleEventMe(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, guestIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		type guestInfo struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		}
		var guests []guestInfo
		for _, gid := range guestIDs {
			var name string
			if err := db.QueryRow("SELECT name FROM guests WHERE id = $1 AND event_id = $2", gid, eventID).Scan(&name); err == nil {
				guests = append(guests, guestInfo{ID: gid, Name: name})
			}
		}
		if guests == nil {
			guests = []guestInfo{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"role": role, "guests": guests, "constraint_kinds": constraintKinds})
	}
}

func handleGetEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, _, _, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		var name string
		var maximizeKnown, groupSingles, groupByMeal, balanceTables bool
		var balanceWeight float64
		var targetSlack, beamWidth, minKnown, minUnknown int
		err := db.QueryRow(`
			SELECT name, maximize_known, group_singles, group_by_meal, balance_tables,
				balance_weight, target_slack, beam_width, min_known, min_unknown
			FROM events WHERE id = $1`, eventID).Scan(
			&name, &maximizeKnown, &groupSingles, &groupByMeal, &balanceTables,
			&balanceWeight, &targetSlack, &beamWidth, &minKnown, &minUnknown)
		if err != nil {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":             eventID,
			"name":           name,
			"maximize_known": maximizeKnown,
			"group_singles":  groupSingles,
			"group_by_meal":  groupByMeal,
			"balance_tables": balanceTables,
			"balance_weight": balanceWeight,
			"target_slack":   targetSlack,
			"beam_width":     beamWidth,
			"min_known":      minKnown,
			"min_unknown":    minUnknown,
		})
	}
}

func handleUpdateEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			MaximizeKnown *bool    `json:"maximize_known"`
			GroupSingles  *bool    `json:"group_singles"`
			GroupByMeal   *bool    `json:"group_by_meal"`
			BalanceTables *bool    `json:"balance_tables"`
			BalanceWeight *float64 `json:"balance_weight"`
			TargetSlack   *int     `json:"target_slack"`
			BeamWidth     *int     `json:"beam_width"`
			MinKnown      *int     `json:"min_known"`
			MinUnknown    *int     `json:"min_unknown"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.BalanceWeight != nil && *body.BalanceWeight < 0 {
			http.Error(w, "balance_weight must be at least 0", http.StatusBadRequest)
			return
		}
		if body.TargetSlack != nil && *body.TargetSlack < 0 {
			http.Error(w, "target_slack must be at least 0", http.StatusBadRequest)
			return
		}
		if body.BeamWidth != nil && *body.BeamWidth < 1 {
			http.Error(w, "beam_width must be at least 1", http.StatusBadRequest)
			return
		}
		if body.MinKnown != nil && *body.MinKnown < 0 {
			http.Error(w, "min_known must be at least 0", http.StatusBadRequest)
			return
		}
		if body.MinUnknown != nil && *body.MinUnknown < 0 {
			http.Error(w, "min_unknown must be at least 0", http.StatusBadRequest)
			return
		}
		updates := []struct {
			column string
			value  any
		}{
			{"maximize_known", body.MaximizeKnown},
			{"group_singles", body.GroupSingles},
			{"group_by_meal", body.GroupByMeal},
			{"balance_tables", body.BalanceTables},
			{"balance_weight", body.BalanceWeight},
			{"target_slack", body.TargetSlack},
			{"beam_width", body.BeamWidth},
			{"min_known", body.MinKnown},
			{"min_unknown", body.MinUnknown},
		}
		for _, u := range updates {
			switch v := u.value.(type) {
			case *bool:
				if v == nil {
					continue
				}
				u.value = *v
			case *float64:
				if v == nil {
					continue
				}
				u.value = *v
			case *int:
				if v == nil {
					continue
				}
				u.value = *v
			}
			if _, err := db.Exec("UPDATE events SET "+u.column+" = $1 WHERE id = $2", u.value, eventID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListGuests(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, _, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}

		if role != "admin" {
			rows, err := db.Query("SELECT id, name FROM guests WHERE event_id = $1 ORDER BY name", eventID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			defer rows.Close()
			type guestBasic struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			}
			var guests []guestBasic
			for rows.Next() {
				var g guestBasic
				if err := rows.Scan(&g.ID, &g.Name); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				guests = append(guests, g)
			}
			if guests == nil {
				guests = []guestBasic{}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(guests)
			return
		}

		rows, err := db.Query(`
			SELECT id, guest_key, name, email, meal_preference, single, plus_one,
				interested_in, min_known, min_unknown, weight
			FROM guests WHERE event_id = $1 ORDER BY name`, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type guest struct {
			ID             int64    `json:"id"`
			Key            string   `json:"guest_key"`
			Name           string   `json:"name"`
			Email          string   `json:"email"`
			MealPreference string   `json:"meal_preference"`
			Single         bool     `json:"single"`
			PlusOne        bool     `json:"plus_one"`
			InterestedIn   []string `json:"interested_in"`
			MinKnown       int      `json:"min_known"`
			MinUnknown     int      `json:"min_unknown"`
			Weight         int      `json:"weight"`
		}

		var guests []guest
		for rows.Next() {
			var g guest
			if err := rows.Scan(&g.ID, &g.Key, &g.Name, &g.Email, &g.MealPreference, &g.Single, &g.PlusOne,
				pq.Array(&g.InterestedIn), &g.MinKnown, &g.MinUnknown, &g.Weight); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if g.InterestedIn == nil {
				g.InterestedIn = []string{}
			}
			guests = append(guests, g)
		}
		if guests == nil {
			guests = []guest{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(guests)
	}
}

func handleCreateGuest(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Key            string   `json:"guest_key"`
			Name           string   `json:"name"`
			Email          string   `json:"email"`
			MealPreference string   `json:"meal_preference"`
			Single         bool     `json:"single"`
			PlusOne        bool     `json:"plus_one"`
			InterestedIn   []string `json:"interested_in"`
			MinKnown       int      `json:"min_known"`
			MinUnknown     int      `json:"min_unknown"`
			Weight         int      `json:"weight"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key == "" || body.Name == "" {
			http.Error(w, "guest_key and name are required", http.StatusBadRequest)
			return
		}
		if body.Weight == 0 {
			body.Weight = 1
		}
		var id int64
		err := db.QueryRow(`
			INSERT INTO guests (event_id, guest_key, name, email, meal_preference, single, plus_one,
				interested_in, min_known, min_unknown, weight)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
			eventID, body.Key, body.Name, body.Email, body.MealPreference, body.Single, body.PlusOne,
			pq.Array(body.InterestedIn), body.MinKnown, body.MinUnknown, body.Weight).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "guest_key": body.Key, "name": body.Name})
	}
}

func handleDeleteGuest(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		guestID, err := strconv.ParseInt(r.PathValue("guestID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid guest ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM guests WHERE id = $1 AND event_id = $2", guestID, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "guest not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListTables(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, _, _, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		rows, err := db.Query("SELECT id, name, capacity, tags FROM seating_tables WHERE event_id = $1 ORDER BY id", eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type table struct {
			ID       int64    `json:"id"`
			Name     string   `json:"name"`
			Capacity int      `json:"capacity"`
			Tags     []string `json:"tags"`
		}
		var tables []table
		for rows.Next() {
			var t table
			if err := rows.Scan(&t.ID, &t.Name, &t.Capacity, pq.Array(&t.Tags)); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if t.Tags == nil {
				t.Tags = []string{}
			}
			tables = append(tables, t)
		}
		if tables == nil {
			tables = []table{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tables)
	}
}

func handleCreateTable(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name     string   `json:"name"`
			Capacity int      `json:"capacity"`
			Tags     []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if body.Capacity < 1 {
			http.Error(w, "capacity must be at least 1", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow("INSERT INTO seating_tables (event_id, name, capacity, tags) VALUES ($1, $2, $3, $4) RETURNING id",
			eventID, body.Name, body.Capacity, pq.Array(body.Tags)).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "name": body.Name, "capacity": body.Capacity})
	}
}

func handleDeleteTable(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		tableID, err := strconv.ParseInt(r.PathValue("tableID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid table ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM seating_tables WHERE id = $1 AND event_id = $2", tableID, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListConstraints(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, myGuestIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		var query string
		var args []any
		if role == "admin" {
			query = `SELECT gc.id, gc.guest_a_id, ga.name, gc.guest_b_id, gb.name, gc.kind::text
				FROM guest_constraints gc
				JOIN guests ga ON ga.id = gc.guest_a_id
				JOIN guests gb ON gb.id = gc.guest_b_id
				WHERE ga.event_id = $1
				ORDER BY gc.id`
			args = []any{eventID}
		} else {
			query = `SELECT gc.id, gc.guest_a_id, ga.name, gc.guest_b_id, gb.name, gc.kind::text
				FROM guest_constraints gc
				JOIN guests ga ON ga.id = gc.guest_a_id
				JOIN guests gb ON gb.id = gc.guest_b_id
				WHERE ga.event_id = $1 AND gc.guest_a_id = ANY($2)
				ORDER BY gc.id`
			args = []any{eventID, pq.Array(myGuestIDs)}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type constraint struct {
			ID         int64  `json:"id"`
			GuestAID   int64  `json:"guest_a_id"`
			GuestAName string `json:"guest_a_name"`
			GuestBID   int64  `json:"guest_b_id"`
			GuestBName string `json:"guest_b_name"`
			Kind       string `json:"kind"`
		}
		var constraints []constraint
		for rows.Next() {
			var c constraint
			if err := rows.Scan(&c.ID, &c.GuestAID, &c.GuestAName, &c.GuestBID, &c.GuestBName, &c.Kind); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			constraints = append(constraints, c)
		}
		if constraints == nil {
			constraints = []constraint{}
		}

		var contradictions []constraint
		if role == "admin" {
			type pairKey struct{ a, b int64 }
			seen := map[pairKey]map[string]bool{}
			norm := func(a, b int64) pairKey {
				if a > b {
					a, b = b, a
				}
				return pairKey{a, b}
			}
			for _, c := range constraints {
				pk := norm(c.GuestAID, c.GuestBID)
				if seen[pk] == nil {
					seen[pk] = map[string]bool{}
				}
				seen[pk][c.Kind] = true
			}
			for _, c := range constraints {
				pk := norm(c.GuestAID, c.GuestBID)
				if seen[pk]["must_with"] && seen[pk]["must_separate"] {
					contradictions = append(contradictions, c)
				}
			}
		}
		if contradictions == nil {
			contradictions = []constraint{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"constraints": constraints, "contradictions": contradictions})
	}
}

func handleCreateConstraint(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, myGuestIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		var body struct {
			GuestAID int64  `json:"guest_a_id"`
			GuestBID int64  `json:"guest_b_id"`
			Kind     string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.GuestAID == body.GuestBID {
			http.Error(w, "guests must be different", http.StatusBadRequest)
			return
		}
		if !slices.Contains(constraintKinds, body.Kind) {
			http.Error(w, "invalid kind", http.StatusBadRequest)
			return
		}
		if role != "admin" && !slices.Contains(myGuestIDs, body.GuestAID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var id int64
		err := db.QueryRow(`
			INSERT INTO guest_constraints (guest_a_id, guest_b_id, kind)
			SELECT $1, $2, $3::constraint_kind
			FROM guests ga
			JOIN guests gb ON gb.id = $2 AND gb.event_id = $4
			WHERE ga.id = $1 AND ga.event_id = $4
			ON CONFLICT (guest_a_id, guest_b_id, kind) DO UPDATE SET kind = EXCLUDED.kind
			RETURNING id`, body.GuestAID, body.GuestBID, body.Kind, eventID).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id})
	}
}

func handleDeleteConstraint(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, myGuestIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		constraintID, err := strconv.ParseInt(r.PathValue("constraintID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid constraint ID", http.StatusBadRequest)
			return
		}
		var query string
		var args []any
		if role == "admin" {
			query = `DELETE FROM guest_constraints WHERE id = $1
				AND guest_a_id IN (SELECT id FROM guests WHERE event_id = $2)`
			args = []any{constraintID, eventID}
		} else {
			query = `DELETE FROM guest_constraints WHERE id = $1 AND guest_a_id = ANY($2)`
			args = []any{constraintID, pq.Array(myGuestIDs)}
		}
		result, err := db.Exec(query, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "constraint not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListRelationships(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		rows, err := db.Query(`
			SELECT rl.id, rl.guest_a_id, ga.name, rl.guest_b_id, gb.name, rl.relation, rl.strength, rl.notes
			FROM relationships rl
			JOIN guests ga ON ga.id = rl.guest_a_id
			JOIN guests gb ON gb.id = rl.guest_b_id
			WHERE ga.event_id = $1
			ORDER BY rl.id`, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type relationship struct {
			ID         int64  `json:"id"`
			GuestAID   int64  `json:"guest_a_id"`
			GuestAName string `json:"guest_a_name"`
			GuestBID   int64  `json:"guest_b_id"`
			GuestBName string `json:"guest_b_name"`
			Relation   string `json:"relation"`
			Strength   int    `json:"strength"`
			Notes      string `json:"notes"`
		}
		var relationships []relationship
		for rows.Next() {
			var rel relationship
			if err := rows.Scan(&rel.ID, &rel.GuestAID, &rel.GuestAName, &rel.GuestBID, &rel.GuestBName,
				&rel.Relation, &rel.Strength, &rel.Notes); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			relationships = append(relationships, rel)
		}
		if relationships == nil {
			relationships = []relationship{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(relationships)
	}
}

func handleUpsertRelationship(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			GuestAID int64  `json:"guest_a_id"`
			GuestBID int64  `json:"guest_b_id"`
			Relation string `json:"relation"`
			Strength int    `json:"strength"`
			Notes    string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.GuestAID == body.GuestBID {
			http.Error(w, "guests must be different", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow(`
			INSERT INTO relationships (guest_a_id, guest_b_id, relation, strength, notes)
			SELECT $1, $2, $3, $4, $5
			FROM guests ga
			JOIN guests gb ON gb.id = $2 AND gb.event_id = $6
			WHERE ga.id = $1 AND ga.event_id = $6
			ON CONFLICT (guest_a_id, guest_b_id) DO UPDATE
				SET relation = EXCLUDED.relation, strength = EXCLUDED.strength, notes = EXCLUDED.notes
			RETURNING id`, body.GuestAID, body.GuestBID, body.Relation, body.Strength, body.Notes, eventID).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id})
	}
}

func handleDeleteRelationship(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		relationshipID, err := strconv.ParseInt(r.PathValue("relationshipID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid relationship ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec(`DELETE FROM relationships WHERE id = $1
			AND guest_a_id IN (SELECT id FROM guests WHERE event_id = $2)`, relationshipID, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "relationship not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSolve(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}

		var opts solver.Options
		opts.MaxSwapPasses = solver.DefaultOptions.MaxSwapPasses
		opts.KnownBonus = solver.DefaultOptions.KnownBonus
		err := db.QueryRow(`
			SELECT maximize_known, group_singles, group_by_meal, balance_tables,
				balance_weight, target_slack, beam_width, min_known, min_unknown
			FROM events WHERE id = $1`, eventID).Scan(
			&opts.MaximizeKnown, &opts.GroupSingles, &opts.GroupByMealPreference, &opts.BalanceTables,
			&opts.BalanceWeight, &opts.MinTargetSlack, &opts.BeamWidth, &opts.MinKnown, &opts.MinUnknown)
		if err != nil {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}

		rows, err := db.Query(`
			SELECT id, guest_key, name, meal_preference, single, plus_one,
				interested_in, min_known, min_unknown, weight
			FROM guests WHERE event_id = $1 ORDER BY id`, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		var guests []solver.Guest
		keyByID := map[int64]string{}
		guestIdx := map[string]int{}
		for rows.Next() {
			var id int64
			var g solver.Guest
			if err := rows.Scan(&id, &g.ID, &g.Name, &g.MealPreference, &g.Single, &g.PlusOne,
				pq.Array(&g.InterestedIn), &g.MinKnown, &g.MinUnknown, &g.Weight); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			keyByID[id] = g.ID
			guestIdx[g.ID] = len(guests)
			guests = append(guests, g)
		}

		if len(guests) == 0 {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"tables": []any{}})
			return
		}

		crows, err := db.Query(`
			SELECT gc.guest_a_id, gc.guest_b_id, gc.kind::text
			FROM guest_constraints gc
			JOIN guests ga ON ga.id = gc.guest_a_id
			WHERE ga.event_id = $1
			ORDER BY gc.id`, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer crows.Close()
		for crows.Next() {
			var aID, bID int64
			var kind string
			if err := crows.Scan(&aID, &bID, &kind); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			i, iOk := guestIdx[keyByID[aID]]
			bKey, bOk := keyByID[bID]
			if !iOk || !bOk {
				continue
			}
			if kind == "must_with" {
				guests[i].MustWith = append(guests[i].MustWith, bKey)
			} else {
				guests[i].MustSeparate = append(guests[i].MustSeparate, bKey)
			}
		}

		rrows, err := db.Query(`
			SELECT rl.guest_a_id, rl.guest_b_id, rl.relation, rl.strength, rl.notes
			FROM relationships rl
			JOIN guests ga ON ga.id = rl.guest_a_id
			WHERE ga.event_id = $1
			ORDER BY rl.id`, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rrows.Close()
		var relationships []solver.Relationship
		for rrows.Next() {
			var aID, bID int64
			var rel solver.Relationship
			if err := rrows.Scan(&aID, &bID, &rel.Relation, &rel.Strength, &rel.Notes); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			aKey, aOk := keyByID[aID]
			bKey, bOk := keyByID[bID]
			if !aOk || !bOk {
				continue
			}
			rel.A, rel.B = aKey, bKey
			relationships = append(relationships, rel)
		}

		trows, err := db.Query("SELECT name, capacity, tags FROM seating_tables WHERE event_id = $1 ORDER BY id", eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer trows.Close()
		var tables []solver.Table
		for trows.Next() {
			var t solver.Table
			if err := trows.Scan(&t.Name, &t.Capacity, pq.Array(&t.Tags)); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			tables = append(tables, t)
		}

		m, err := solver.Build(guests, tables, relationships, opts)
		if err != nil {
			if errors.Is(err, solver.ErrUnknownGuest) || errors.Is(err, solver.ErrDuplicateGuest) ||
				errors.Is(err, solver.ErrConflictingConstraints) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		assign, err := m.Solve()
		if err != nil {
			if errors.Is(err, solver.ErrInsufficientCapacity) || errors.Is(err, solver.ErrUnplaceableGroup) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		byTable := solver.GroupByTable(assign)
		var allStats []solver.TableStats
		for _, t := range tables {
			allStats = append(allStats, m.TableStats(byTable[t.Name]))
		}
		allStats = solver.GradeTables(allStats)

		type memberResult struct {
			Name    string `json:"name"`
			Relaxed bool   `json:"relaxed"`
		}
		type tableResult struct {
			Name       string         `json:"name"`
			Capacity   int            `json:"capacity"`
			Members    []memberResult `json:"members"`
			TotalScore int            `json:"total_score"`
			MeanScore  float64        `json:"mean_score"`
			PairCount  int            `json:"pair_count"`
			PosPairs   int            `json:"positive_pairs"`
			NegPairs   int            `json:"negative_pairs"`
			NeuPairs   int            `json:"neutral_pairs"`
			Grade      string         `json:"grade"`
		}
		var results []tableResult
		for i, t := range tables {
			members := []memberResult{}
			for _, name := range byTable[t.Name] {
				members = append(members, memberResult{Name: name, Relaxed: assign[name].Relaxed})
			}
			s := allStats[i]
			results = append(results, tableResult{
				Name:       t.Name,
				Capacity:   t.Capacity,
				Members:    members,
				TotalScore: s.TotalScore,
				MeanScore:  s.MeanScore,
				PairCount:  s.PairCount,
				PosPairs:   s.PosPairs,
				NegPairs:   s.NegPairs,
				NeuPairs:   s.NeuPairs,
				Grade:      s.Grade,
			})
		}

		var relaxed []string
		for name, p := range assign {
			if p.Relaxed {
				relaxed = append(relaxed, name)
			}
		}
		slices.Sort(relaxed)
		if relaxed == nil {
			relaxed = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"tables":         results,
			"relaxed_guests": relaxed,
			"objective":      m.Objective(assign),
		})
	}
}
