package handler

import (
	"github.com/fortrealm/server/internal/ws"
)

// Client command names. Events the server pushes live in internal/event;
// these are the frames clients send.
const (
	CmdAuth           = "auth"
	CmdState          = "state:request"
	CmdMove           = "move:request"
	CmdInventoryList  = "inventory:list"
	CmdItemCatalog    = "items:catalog"
	CmdEquip          = "inventory:equip"
	CmdUnequip        = "inventory:unequip"
	CmdUse            = "inventory:use"
	CmdCollect        = "collectable:collect"
	CmdEditorSave     = "editor:save"
	CmdEditorDelete   = "editor:delete"
	CmdFeatureList    = "features:list"
	CmdShout          = "shoutbox:send"
	CmdShoutRecent    = "shoutbox:recent"
	CmdSettingsGet    = "settings:get"
	CmdSettingsSet    = "settings:set"
	CmdLogsRecent     = "logs:recent"
)

// RegisterAll wires every command handler into the registry.
func RegisterAll(reg *Registry, deps *Deps) {
	handshake := []ws.SessionState{ws.StateHandshake}
	joined := []ws.SessionState{ws.StateJoined}

	reg.Register(CmdAuth, handshake, handleAuth(deps))

	reg.Register(CmdState, joined, handleState(deps))
	reg.Register(CmdMove, joined, handleMove(deps))

	reg.Register(CmdInventoryList, joined, handleInventoryList(deps))
	reg.Register(CmdItemCatalog, joined, handleItemCatalog(deps))
	reg.Register(CmdEquip, joined, handleEquip(deps))
	reg.Register(CmdUnequip, joined, handleUnequip(deps))
	reg.Register(CmdUse, joined, handleUse(deps))

	reg.Register(CmdCollect, joined, handleCollect(deps))

	reg.Register(CmdEditorSave, joined, handleEditorSave(deps))
	reg.Register(CmdEditorDelete, joined, handleEditorDelete(deps))
	reg.Register(CmdFeatureList, joined, handleFeatureList(deps))

	reg.Register(CmdShout, joined, handleShout(deps))
	reg.Register(CmdShoutRecent, joined, handleRecentShouts(deps))

	reg.Register(CmdSettingsGet, joined, handleSettingsGet(deps))
	reg.Register(CmdSettingsSet, joined, handleSettingsSet(deps))

	reg.Register(CmdLogsRecent, joined, handleRecentLogs(deps))
}
