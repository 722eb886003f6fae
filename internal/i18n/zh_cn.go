package i18n

// ZhCNMessages 简体中文消息目录
// ZhCNMessages Simplified Chinese message catalog
var ZhCNMessages = map[string]string{
	// 会议步骤
	"step.checkin":       "签到",
	"step.qualityoflife": "生活质量",
	"step.rocks":         "目标",
	"step.todos":         "待办",
	"step.issues":        "议题",
	"step.close":         "收尾",

	// TUI - 面板标题
	"panel.meeting": "会议",
	"panel.steps":   "步骤",
	"panel.notices": "通知",

	// TUI - 侧边栏
	"sidebar.total":    "总时长",
	"sidebar.section":  "本节",
	"sidebar.progress": "进度",
	"sidebar.owner":    "用户",

	// TUI - 状态栏
	"status.ready":    "就绪",
	"status.saving":   "保存中...",
	"status.saved":    "已保存 %s",
	"status.complete": "会议已完成",
	"status.synced":   "%s 已设为 %s",

	// TUI - 其他
	"tui.loading":      "加载中...",
	"tui.recap":        "回顾",
	"tui.summary_hint": "q 退出 · ↑/↓ 滚动",

	// TUI - 快捷键
	"keys.next":   "ctrl+n 下一步",
	"keys.back":   "ctrl+b 上一步",
	"keys.goto":   "alt+1..6 跳转",
	"keys.field":  "tab 切换字段",
	"keys.cycle":  "space 切换状态",
	"keys.save":   "ctrl+s 保存",
	"keys.quit":   "ctrl+c 退出",
	"keys.finish": "enter 完成",

	// 字段
	"field.word":    "%s 的一个词",
	"field.rating":  "%s 评分 (1-10)",
	"field.comment": "备注",
	"field.notes":   "说明",
	"field.qol":     "%s / %s",

	// 生活质量维度
	"qol.physical":     "身体",
	"qol.emotional":    "情绪",
	"qol.relationship": "关系",
	"qol.financial":    "财务",
	"qol.spiritual":    "精神",

	// 空列表
	"empty.rocks":  "没有进行中的目标。",
	"empty.todos":  "没有未完成的待办。",
	"empty.issues": "没有未解决的议题。",

	// 收尾
	"close.confirm": "按 enter 完成会议。",
	"close.done":    "会议已保存，时长 %s。",

	// 通知
	"notify.sync_failed":     "无法更新 %s：%v",
	"notify.save_failed":     "无法保存 %s：%v",
	"notify.complete_failed": "无法保存会议总结：%v",
	"notify.derived_issue":   "已创建议题 %q",
	"notify.recap_failed":    "无法生成回顾：%v",

	// REPL
	"repl.welcome":  "周会开始。输入 help 查看命令。",
	"repl.unknown":  "未知命令：%s",
	"repl.usage":    "用法：%s",
	"repl.bye":      "会议未完成，已保存的部分保持不变。",
	"repl.complete": "会议完成，总结 %s 已保存。",

	// 历史 / CLI
	"history.empty":      "还没有会议记录。",
	"history.header":     "历史会议",
	"cli.owner_required": "未配置用户。运行：huddle whoami --set-id <id> --set-name <name>",
	"cli.created":        "已创建 %s %s",
	"cli.deleted":        "已删除会议 %s",
	"cli.exported":       "已导出 %d 个文档到 %s",
	"cli.imported":       "已导入 %d 个文档",
	"cli.whoami":         "%s (%s)",
	"cli.init":           "已写入 %s",
	"cli.init_exists":    "%s 已存在",
	"cli.archived":       "已归档 %s %s",
	"cli.restored":       "已恢复 %d 个已保存的环节",
	"cli.line_fallback":  "改用普通输入：%v",
	"cli.recap_written":  "回顾已保存到 %s",

	// 错误
	"error.invalid_step": "没有第 %d 节",
	"error.complete":     "会议已经完成",
}
