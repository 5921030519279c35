package controllers

import (
	"errors"
	"iotd/internal/commands"
	"iotd/internal/providers"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

type CommandController struct {
	logger   providers.Logger
	commands commands.ServiceInterface
}

func NewCommandController(logger providers.Logger, commands commands.ServiceInterface) *CommandController {
	return &CommandController{logger: logger, commands: commands}
}

type sendCommandRequest struct {
	DeviceID int64           `json:"device_id" validate:"required|min:1"`
	Type     string          `json:"type" validate:"required|maxLen:50"`
	Data     json.RawMessage `json:"data"`
}

type commandResultRequest struct {
	Result  string `json:"result"`
	Success bool   `json:"success"`
}

func (cc *CommandController) Send(w http.ResponseWriter, r *http.Request) {
	var req sendCommandRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if v := validate.Struct(&req); !v.Validate() {
		http.Error(w, v.Errors.One(), http.StatusBadRequest)
		return
	}

	cmd, err := cc.commands.Send(r.Context(), req.DeviceID, req.Type, req.Data)
	switch {
	case errors.Is(err, commands.ErrDeviceNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case errors.Is(err, commands.ErrInvalidCommand):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		cc.logger.Errorf(providers.TypePost, "Sending command to device %d failed: %s", req.DeviceID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, cmd)
}

func (cc *CommandController) Result(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req commandResultRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	cmd, err := cc.commands.UpdateResult(r.Context(), id, req.Result, req.Success)
	if errors.Is(err, commands.ErrCommandNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (cc *CommandController) List(w http.ResponseWriter, r *http.Request) {
	deviceID, err := queryID(r, "device")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := cc.commands.ListByDevice(r.Context(), deviceID)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
